package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

const (
	// refreshSkew refreshes tokens this long before they expire
	refreshSkew = 60 * time.Second
	// defaultExpiresIn applies when the provider omits expires_in
	defaultExpiresIn = 3600
)

// Clock returns the current time. Everything that schedules takes one so
// tests can pin the time.
type Clock func() time.Time

// TokenCustodian hands out usable access tokens for linked accounts,
// refreshing and persisting them when they are about to expire.
type TokenCustodian struct {
	client   monzo.ClientInterface
	database db.DBInterface
	now      Clock
}

func NewTokenCustodian(client monzo.ClientInterface, database db.DBInterface, now Clock) *TokenCustodian {
	return &TokenCustodian{client: client, database: database, now: now}
}

func (c *TokenCustodian) needsRefresh(acc *models.LinkedAccount) bool {
	if acc.TokenExpiry == nil {
		return true
	}
	return !c.now().Before(acc.TokenExpiry.Add(-refreshSkew))
}

// AccessToken returns a token for acc that is valid for at least another
// minute. A failed refresh is returned as is so callers can match the
// provider's AuthError.
func (c *TokenCustodian) AccessToken(ctx context.Context, acc *models.LinkedAccount) (string, error) {
	if !c.needsRefresh(acc) {
		return acc.AccessToken, nil
	}

	log.Info().Str("account", acc.ID).Msg("Refreshing access token")
	tok, err := c.client.RefreshToken(ctx, acc.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = acc.RefreshToken
	}
	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	expiry := c.now().Add(time.Duration(expiresIn) * time.Second)

	if err := c.database.UpdateCredentials(acc.ID, tok.AccessToken, refreshToken, expiry); err != nil {
		return "", fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	acc.AccessToken = tok.AccessToken
	acc.RefreshToken = refreshToken
	acc.TokenExpiry = &expiry
	return tok.AccessToken, nil
}
