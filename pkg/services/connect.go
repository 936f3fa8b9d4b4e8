package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

var (
	ErrMissingRefreshToken = errors.New("no refresh token returned; the OAuth client must be confidential")
	ErrPendingNotFound     = errors.New("pending approval not found")
	ErrPendingForbidden    = errors.New("pending approval belongs to another user")
	ErrPendingNotStored    = errors.New("failed to store pending approval")
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrNothingLinked       = errors.New("no linked account could be stored")
)

type ConnectStatus string

const (
	StatusConnected       ConnectStatus = "connected"
	StatusPendingApproval ConnectStatus = "pending_approval"
	StatusPending         ConnectStatus = "pending"
	StatusExpired         ConnectStatus = "expired"
)

// ConnectResult is the outcome of completing an OAuth callback
type ConnectResult struct {
	Status    ConnectStatus
	PendingID string
	Sync      *SyncResult
}

// ConnectionService drives a bank connection from code exchange to an
// authorized, synced set of accounts. When the bank wants the user to
// approve access in its app first, the tokens are parked in a pending
// approval until Verify sees the approval.
type ConnectionService struct {
	client      monzo.ClientInterface
	database    db.DBInterface
	syncer      *AccountSyncer
	now         Clock
	redirectURI string
}

func NewConnectionService(client monzo.ClientInterface, database db.DBInterface, now Clock, redirectURI string) *ConnectionService {
	return &ConnectionService{
		client:      client,
		database:    database,
		syncer:      NewAccountSyncer(client, database, now),
		now:         now,
		redirectURI: redirectURI,
	}
}

// AuthURL is where the user is sent to start a connection
func (s *ConnectionService) AuthURL(state string) string {
	return s.client.AuthURL(state)
}

// Complete exchanges the authorization code and either syncs the accounts
// or, when the bank still forbids access, stores a pending approval.
func (s *ConnectionService) Complete(ctx context.Context, code, userID string) (*ConnectResult, error) {
	tok, err := s.client.ExchangeAuthCode(ctx, code, s.redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	if tok.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	expiresIn := tok.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	tokens := Tokens{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, ExpiresIn: expiresIn}

	accounts, err := s.client.FetchLinkedAccounts(ctx, tok.AccessToken)
	if monzo.IsForbidden(err) {
		now := s.now()
		pending := &models.PendingApproval{
			ID:           uuid.NewString(),
			UserID:       userID,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenExpiry:  now.Add(time.Duration(expiresIn) * time.Second),
			CreatedAt:    now,
		}
		if err := s.database.SavePendingApproval(pending); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPendingNotStored, err)
		}

		log.Info().Str("user", userID).Str("pending", pending.ID).Msg("Connection awaiting approval in the Monzo app")
		return &ConnectResult{Status: StatusPendingApproval, PendingID: pending.ID}, nil
	} else if err != nil {
		return nil, err
	}

	result := s.syncer.syncFetched(ctx, tokens, userID, accounts)
	if err := nothingLinked(result); err != nil {
		return nil, err
	}
	return &ConnectResult{Status: StatusConnected, Sync: result}, nil
}

// nothingLinked reports a sync in which every account failed to persist.
func nothingLinked(result *SyncResult) error {
	if result == nil || result.Accounts > 0 || len(result.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNothingLinked, errors.Join(result.Errors...))
}

// Verify checks whether a pending approval has been granted. Expired
// approvals are deleted and reported as StatusExpired.
func (s *ConnectionService) Verify(ctx context.Context, pendingID, userID string) (ConnectStatus, error) {
	pending, err := s.database.GetPendingApproval(pendingID)
	if err != nil {
		return "", err
	}
	if pending == nil {
		return "", ErrPendingNotFound
	}
	if pending.UserID != userID {
		return "", ErrPendingForbidden
	}

	remaining := pending.TokenExpiry.Sub(s.now())
	if remaining <= 0 {
		if err := s.database.RemovePendingApproval(pendingID); err != nil {
			return "", err
		}
		log.Info().Str("pending", pendingID).Msg("Pending approval expired")
		return StatusExpired, nil
	}

	accounts, err := s.client.FetchLinkedAccounts(ctx, pending.AccessToken)
	if monzo.IsForbidden(err) {
		return StatusPending, nil
	} else if err != nil {
		return "", err
	}

	tokens := Tokens{
		AccessToken:  pending.AccessToken,
		RefreshToken: pending.RefreshToken,
		ExpiresIn:    int64(remaining / time.Second),
	}
	// The pending row stays so the user can retry the verification.
	if err := nothingLinked(s.syncer.syncFetched(ctx, tokens, userID, accounts)); err != nil {
		return "", err
	}

	if err := s.database.RemovePendingApproval(pendingID); err != nil {
		return "", err
	}
	log.Info().Str("user", userID).Str("pending", pendingID).Msg("Pending approval granted")
	return StatusConnected, nil
}
