package main

import "sitetester/cmd"

func main() {
	cmd.Execute()
}
