package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/pkg/models"
)

// RefreshBalances re-reads balances and pots for the active linked accounts
// of userID, or of every user when userID is empty. Tokens are refreshed
// through the custodian first.
func (s *AccountSyncer) RefreshBalances(ctx context.Context, userID string) (*SyncResult, error) {
	accounts, err := s.database.GetLinkedAccounts(userID)
	if err != nil {
		return nil, err
	}

	tokens := NewTokenCustodian(s.client, s.database, s.now)
	result := &SyncResult{}
	for _, acc := range accounts {
		if !acc.IsActive {
			continue
		}

		accessToken, err := tokens.AccessToken(ctx, acc)
		if err != nil {
			log.Warn().Err(err).Str("account", acc.ID).Msg("Cannot refresh balance without a valid token")
			result.Errors = append(result.Errors, fmt.Errorf("account %s: %w", acc.ID, err))
			continue
		}

		balance, err := s.client.FetchBalance(ctx, accessToken, acc.ProviderAccountID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("account %s: %w", acc.ID, err))
			continue
		}

		if int64(acc.Balance) != balance.Balance {
			log.Info().Str("account", acc.Name).
				Str("from", acc.Balance.String()).
				Str("to", models.Pence(balance.Balance).String()).
				Msg("Balance changed")
		}
		if err := s.database.UpdateAccountBalance(acc.ID, models.Pence(balance.Balance), s.now()); err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Accounts++

		n, errs := s.syncPots(ctx, accessToken, acc.ID, acc.ProviderAccountID, s.now())
		result.Pots += n
		result.Errors = append(result.Errors, errs...)
	}
	return result, nil
}
