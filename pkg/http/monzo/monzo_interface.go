package monzo

import (
	"context"

	"github.com/vpnda/potpilot/pkg/models"
)

// ClientInterface defines the Monzo API operations the service depends on
type ClientInterface interface {
	AuthURL(state string) string
	ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*Token, error)
	RefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	FetchLinkedAccounts(ctx context.Context, accessToken string) ([]Account, error)
	FetchBalance(ctx context.Context, accessToken, accountID string) (*Balance, error)
	FetchPots(ctx context.Context, accessToken, accountID string) ([]Pot, error)
	Deposit(ctx context.Context, accessToken, potID, sourceAccountID string, amount models.Pence, dedupeID string) error
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)
