package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/config"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/secret"
	"github.com/vpnda/potpilot/pkg/services"
	"github.com/vpnda/potpilot/pkg/utils"
)

// app is everything a command needs, wired from the configuration
type app struct {
	db          *db.DB
	client      monzo.ClientInterface
	loc         *time.Location
	runner      *services.AutomationRunner
	syncer      *services.AccountSyncer
	connections *services.ConnectionService
	automations *services.AutomationManager
}

func (a *app) Close() error {
	return a.db.Close()
}

func openDatabase() (*db.DB, error) {
	opts, err := config.GetDatabaseOptions()
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if dsn == "" {
		dsn = dbPath
	}

	var dbOpts []db.Option
	key, err := config.GetTokenSealingKey()
	if err != nil {
		return nil, err
	}
	if key != "" {
		sealer, err := secret.NewSealer(key)
		if err != nil {
			return nil, err
		}
		dbOpts = append(dbOpts, db.WithSealer(sealer))
	} else {
		log.Warn().Msg("No token sealing key configured, OAuth tokens are stored in plain text")
	}

	database, err := db.Open(opts.Driver, dsn, dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return database, nil
}

// newMonzoClient builds the provider client. Unless requireCredentials is
// set, missing client credentials only produce a warning so that serve can
// still report the misconfiguration from its check endpoint.
func newMonzoClient(requireCredentials bool) (*monzo.Client, string, error) {
	opts, err := config.GetMonzoOptions()
	if errors.Is(err, config.ErrMissingCredentials) && !requireCredentials {
		cfg, cfgErr := config.GetConfig()
		if cfgErr != nil {
			return nil, "", cfgErr
		}
		log.Warn().Msg("Monzo client credentials not set, connecting accounts will fail until they are configured")
		opts, err = cfg.Monzo, nil
		if opts.RedirectURI == "" {
			opts.RedirectURI = config.CallbackURL(cfg.Server.AppURL)
		}
	}
	if err != nil {
		return nil, "", err
	}

	clientOpts := monzo.Options{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		RedirectURI:  opts.RedirectURI,
		APIBase:      opts.APIBase,
		AuthBase:     opts.AuthBase,
	}
	if opts.Debug {
		clientOpts.Transport = utils.DebugRoundTripper()
	}
	return monzo.NewClient(clientOpts), opts.RedirectURI, nil
}

func newApp() (*app, error) {
	return newAppWith(true)
}

func newAppWith(requireCredentials bool) (*app, error) {
	loc, err := config.GetLocation()
	if err != nil {
		return nil, err
	}
	client, redirectURI, err := newMonzoClient(requireCredentials)
	if err != nil {
		return nil, err
	}
	database, err := openDatabase()
	if err != nil {
		return nil, err
	}

	now := time.Now
	return &app{
		db:          database,
		client:      client,
		loc:         loc,
		runner:      services.NewAutomationRunner(client, database, now, loc),
		syncer:      services.NewAccountSyncer(client, database, now),
		connections: services.NewConnectionService(client, database, now, redirectURI),
		automations: services.NewAutomationManager(database, now, loc),
	}, nil
}
