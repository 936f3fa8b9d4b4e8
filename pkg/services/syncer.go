package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

// Tokens are the credentials a sync writes onto every linked account
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// SyncResult counts what a sync stored. Per-item failures are collected in
// Errors and do not stop the sync.
type SyncResult struct {
	Accounts int
	Pots     int
	Errors   []error
}

// AccountSyncer mirrors the provider's accounts and pots into the database
type AccountSyncer struct {
	client   monzo.ClientInterface
	database db.DBInterface
	now      Clock
}

func NewAccountSyncer(client monzo.ClientInterface, database db.DBInterface, now Clock) *AccountSyncer {
	return &AccountSyncer{
		client:   client,
		database: database,
		now:      now,
	}
}

// SyncAccounts fetches the accounts visible to tokens and stores them with
// their pots for userID.
func (s *AccountSyncer) SyncAccounts(ctx context.Context, tokens Tokens, userID string) (*SyncResult, error) {
	accounts, err := s.client.FetchLinkedAccounts(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	return s.syncFetched(ctx, tokens, userID, accounts), nil
}

func (s *AccountSyncer) syncFetched(ctx context.Context, tokens Tokens, userID string, accounts []monzo.Account) *SyncResult {
	now := s.now()
	expiry := now.Add(time.Duration(tokens.ExpiresIn) * time.Second)
	result := &SyncResult{}

	for _, account := range accounts {
		var balance models.Pence
		if b, err := s.client.FetchBalance(ctx, tokens.AccessToken, account.ID); err != nil {
			log.Warn().Err(err).Str("account", account.ID).Msg("Failed to fetch balance, storing zero")
		} else {
			balance = models.Pence(b.Balance)
		}

		linkedID, err := s.database.UpsertLinkedAccount(&models.LinkedAccount{
			ID:                uuid.NewString(),
			UserID:            userID,
			ProviderAccountID: account.ID,
			Name:              account.DisplayName(),
			Type:              account.Classify(),
			Balance:           balance,
			AccessToken:       tokens.AccessToken,
			RefreshToken:      tokens.RefreshToken,
			TokenExpiry:       &expiry,
			ReconnectBy:       now.Add(models.ReconnectAfter),
			IsActive:          true,
			LastSynced:        &now,
			ConnectedAt:       now,
		})
		if err != nil {
			log.Error().Err(err).Str("account", account.ID).Msg("Failed to store linked account")
			result.Errors = append(result.Errors, fmt.Errorf("account %s: %w", account.ID, err))
			continue
		}
		result.Accounts++

		n, errs := s.syncPots(ctx, tokens.AccessToken, linkedID, account.ID, now)
		result.Pots += n
		result.Errors = append(result.Errors, errs...)
	}

	log.Info().Str("user", userID).Int("accounts", result.Accounts).Int("pots", result.Pots).Msg("Synced linked accounts")
	return result
}

func (s *AccountSyncer) syncPots(ctx context.Context, accessToken, linkedID, providerAccountID string, now time.Time) (int, []error) {
	pots, err := s.client.FetchPots(ctx, accessToken, providerAccountID)
	if err != nil {
		log.Warn().Err(err).Str("account", providerAccountID).Msg("Failed to fetch pots, skipping")
		return 0, nil
	}

	stored := 0
	var errs []error
	for _, pot := range pots {
		if pot.Deleted {
			continue
		}
		_, err := s.database.UpsertPot(&models.Pot{
			ID:              uuid.NewString(),
			LinkedAccountID: linkedID,
			ProviderPotID:   pot.ID,
			Name:            pot.Name,
			Balance:         models.Pence(pot.Balance),
			LastSynced:      &now,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("pot %s: %w", pot.ID, err))
			continue
		}
		stored++
	}
	return stored, errs
}
