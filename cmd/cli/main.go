package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vpnda/potpilot/pkg/config"
	"github.com/vpnda/potpilot/pkg/utils"
)

var (
	dbPath     string
	configPath string
	rootCmd    *cobra.Command
)

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error().Err(err).Msg("Error getting home directory")
		os.Exit(1)
	}

	defaultDBPath := filepath.Join(homeDir, ".potpilot", "potpilot.db")

	rootCmd = &cobra.Command{
		Use:   "potpilot",
		Short: "Recurring transfers into Monzo pots",
		Long: `potpilot moves money from a Monzo current account into pots on a weekly or
monthly schedule. It serves the OAuth connection flow and the run trigger over
HTTP and can run due automations directly from the command line.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Path to the SQLite database, used when database.dsn is not set")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive REPL",
		Long:  `Start an interactive REPL to inspect accounts, pots and automations and to run them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			runREPL(cmd.Context(), a)
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Long:  `Show the current configuration loaded from config.yaml and the environment, with secrets masked.`,
		Run: func(cmd *cobra.Command, args []string) {
			showConfig()
		},
	}

	rootCmd.AddCommand(replCmd, configCmd, newServeCmd(), newRunCmd(), newAutomationCmd(), newConnectCmd())

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loadConfig() error {
	if err := config.InitGlobalConfig(configPath); err != nil {
		return err
	}

	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	return nil
}

func setupLogging(opts config.LogOptions) {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// showConfig displays the current configuration
func showConfig() {
	cfg, err := config.GetConfig()
	if err != nil {
		log.Error().Err(err).Msg("Error loading configuration")
		return
	}

	orNotSet := func(s string) string {
		if s == "" {
			return "Not set"
		}
		return s
	}
	masked := func(s string) string {
		if s == "" {
			return "Not set"
		}
		return utils.MaskSecret(s)
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Database driver:     %s\n", orNotSet(cfg.Database.Driver))
	fmt.Printf("Database DSN:        %s\n", masked(cfg.Database.DSN))
	fmt.Printf("Monzo client ID:     %s\n", orNotSet(cfg.Monzo.ClientID))
	fmt.Printf("Monzo client secret: %s\n", masked(cfg.Monzo.ClientSecret))
	fmt.Printf("Monzo redirect URI:  %s\n", orNotSet(cfg.Monzo.RedirectURI))
	fmt.Printf("Server address:      %s\n", orNotSet(cfg.Server.Addr))
	fmt.Printf("App URL:             %s\n", orNotSet(cfg.Server.AppURL))
	fmt.Printf("Cron secret:         %s\n", masked(cfg.Server.CronSecret))
	fmt.Printf("Schedule:            %s\n", orNotSet(cfg.Scheduler.Cron))
	fmt.Printf("Timezone:            %s\n", orNotSet(cfg.Scheduler.Timezone))
	fmt.Printf("Token sealing key:   %s\n", masked(cfg.Security.TokenSealingKey))

	if cfg.Monzo.ClientID == "" || cfg.Monzo.ClientSecret == "" {
		fmt.Println("\nSet monzo.clientId and monzo.clientSecret in config.yaml, or MONZO_CLIENT_ID and")
		fmt.Println("MONZO_CLIENT_SECRET, to connect accounts. The OAuth client must be confidential.")
	}
}
