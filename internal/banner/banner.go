package banner

import (
	"sitetester/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

const ascii = `
     _ _       _            _
 ___(_) |_ ___| |_ ___  ___| |_ ___ _ __
/ __| | __/ _ \ __/ _ \/ __| __/ _ \ '__|
\__ \ | ||  __/ ||  __/\__ \ ||  __/ |
|___/_|\__\___|\__\___||___/\__\___|_|`

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	return "\n" + style.Render(ascii) + "\n"
}
