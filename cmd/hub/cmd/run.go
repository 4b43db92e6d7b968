package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mc-Beton/K-fun/internal/application/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the hub daemon",
	Long: `Runs the hub in the foreground: probes KSeF availability on the configured
interval, sweeps expired session tokens, and records connectivity
transitions in the notification feed. Stops on SIGINT/SIGTERM.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	a.log.Info().
		Str("env", a.cfg.App.Env).
		Str("ksef_env", a.cfg.KSeF.Environment).
		Str("ksef_url", a.cfg.KSeF.BaseURL).
		Msg("starting hub")
	a.notifier.HubStarted(a.cfg.App.Name, a.cfg.App.Env)

	mon := monitor.New(a.client, a.cache, a.cfg.KSeF.HealthInterval, a.log)
	mon.Run(ctx)

	a.log.Info().Msg("hub stopped")
	return nil
}
