package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vpnda/potpilot/pkg/config"
	"github.com/vpnda/potpilot/pkg/http/server"
	"github.com/vpnda/potpilot/pkg/models"
)

// cronLogger sends robfig/cron logs to zerolog
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run trigger and the Monzo connection flow",
		Long: `Serve the HTTP endpoints: the cron trigger at /api/cron/run-automations and the
Monzo OAuth flow under /api/auth/monzo. When scheduler.cron is set, due
automations are also run in process on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newAppWith(false)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := config.GetConfig()
			if err != nil {
				return err
			}
			cronSecret, err := config.GetCronSecret()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if cronSecret == "" {
				log.Warn().Msg("No cron secret configured, the run trigger is open to anyone")
			}

			if spec := strings.TrimSpace(cfg.Scheduler.Cron); spec != "" {
				c := cron.New(
					cron.WithLocation(a.loc),
					cron.WithLogger(cronLogger{}),
					cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
				)
				if _, err := c.AddFunc(spec, func() { runScheduled(ctx, a) }); err != nil {
					return fmt.Errorf("invalid scheduler.cron %q: %w", spec, err)
				}
				c.Start()
				defer func() { <-c.Stop().Done() }()
				log.Info().Str("cron", spec).Str("timezone", a.loc.String()).Msg("Scheduler started")
			}

			srv := server.New(server.Options{
				Runner:      a.runner,
				Connections: a.connections,
				Monzo:       cfg.Monzo,
				AppURL:      cfg.Server.AppURL,
				CronSecret:  cronSecret,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on, overrides server.addr")
	return cmd
}

func runScheduled(ctx context.Context, a *app) {
	report, err := a.runner.TryRun(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled automation run failed")
		return
	}
	log.Info().Int("ran", report.Ran).Int("succeeded", report.Succeeded()).Msg("Scheduled automation run finished")
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run every due automation once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.runner.TryRun(cmd.Context())
			if err != nil {
				return err
			}
			printReport(report)
			return nil
		},
	}
}

func printReport(report *models.RunReport) {
	if report.Ran == 0 {
		fmt.Println("No automations due")
		return
	}

	fmt.Printf("Ran %d automations, %d deposited:\n\n", report.Ran, report.Succeeded())
	fmt.Printf("%-38s %-20s %s\n", "Automation", "Status", "Detail")
	fmt.Println(strings.Repeat("-", 100))
	for _, o := range report.Results {
		fmt.Printf("%-38s %-20s %s\n", o.AutomationID, o.Status, o.Error)
	}
}
