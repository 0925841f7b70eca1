package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sitetester/internal/banner"
	"sitetester/internal/cli"
	"sitetester/internal/config"
	"sitetester/internal/dummy"
	"sitetester/internal/logging"
	"sitetester/internal/tui"
)

// NewRootCmd builds the sitetester command tree.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile string
		useTUI  bool
	)

	root := &cobra.Command{
		Use:   "sitetester",
		Short: "sitetester - HTTP load tester with per-second pacing",
		Long: `
sitetester sends GET requests to a single URL at a fixed rate and reports
latency percentiles, a latency histogram, status codes, failure causes
and network statistics.

Settings come from flags, SITETESTER_* environment variables or a JSON
file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.LogLevel); err != nil {
				return err
			}
			defer logging.Sync()
			logging.Info("config resolved",
				zap.String("url", cfg.URL),
				zap.Int("rps", cfg.RPS),
				zap.Int("duration", cfg.Duration),
				zap.Duration("timeout", cfg.Timeout),
				zap.Int("payload_keys", len(cfg.Payload)),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if useTUI {
				return runTUI(ctx, cfg, cmd.OutOrStdout())
			}
			return runHeadless(ctx, cfg, cmd.OutOrStdout())
		},
	}

	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), banner.GetString())
		cmd.Usage()
	})

	f := root.Flags()
	f.StringVarP(&cfgFile, "config", "c", "", "JSON config file")
	f.StringP("url", "u", "", "Target URL")
	f.IntP("rps", "r", config.DefaultRPS, "Requests launched per second")
	f.IntP("duration", "d", config.DefaultDuration, "Number of one-second windows")
	f.IntP("timeout", "t", config.DefaultTimeout, "Per-request timeout in seconds")
	f.StringP("payload", "p", "", "Query parameters, e.g. \"q=go&page=2\"")
	f.Int("max-inflight", 0, "Cap on outstanding requests (0 = unbounded)")
	f.StringP("out", "o", "", "Output prefix for <out>.csv and <out>_report.json")
	f.String("log-level", config.DefaultLogLevel, "Diagnostic log level (debug, info, warn, error)")
	f.BoolVar(&useTUI, "tui", false, "Show the live terminal dashboard")

	root.AddCommand(newDummyCmd())
	return root
}

// Execute runs the root command and exits 1 on any error.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	l, err := logging.New(level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.SetGlobal(l)
	return nil
}

func runHeadless(ctx context.Context, cfg config.Config, out io.Writer) error {
	_, err := cli.Start(ctx, cfg, out)
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return err
}

func runTUI(ctx context.Context, cfg config.Config, out io.Writer) error {
	m, err := tui.Run(ctx, cfg)
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if m.Report != nil {
		cli.PrintReport(out, m.Report)
		if err := cli.SaveReports(out, cfg.OutPrefix, m.Result, m.Report); err != nil {
			return err
		}
	}
	if errors.Is(m.RunErr, context.Canceled) {
		return errors.New("interrupted")
	}
	return m.RunErr
}

func newDummyCmd() *cobra.Command {
	var port int
	c := &cobra.Command{
		Use:   "dummy",
		Short: "Run the built-in target server",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := dummy.Start(dummy.ServerConfig{Port: port})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	c.Flags().IntVar(&port, "port", 8080, "Port to run dummy server on")
	return c
}
