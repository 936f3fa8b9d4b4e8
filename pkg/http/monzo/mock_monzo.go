package monzo

import (
	"context"
	"sync"

	"github.com/vpnda/potpilot/pkg/models"
)

// DepositCall records a deposit accepted by MockClient
type DepositCall struct {
	AccessToken     string
	PotID           string
	SourceAccountID string
	Amount          models.Pence
	DedupeID        string
}

// MockClient is an in-memory Monzo for tests. Like the real API it accepts a
// repeated dedupe id without moving money twice.
type MockClient struct {
	mu sync.Mutex

	// Mock data to return
	ExchangeToken  *Token
	RefreshedToken *Token
	Accounts       []Account
	Balances       map[string]int64
	Pots           map[string][]Pot

	// Error values to return
	ExchangeErr error
	RefreshErr  error
	// FetchAccountsErrs is consumed one error per call before FetchAccountsErr applies
	FetchAccountsErrs []error
	FetchAccountsErr  error
	FetchBalanceErrs  map[string]error
	FetchPotsErr      error
	DepositErr        error

	// Recorded calls
	Deposits          []DepositCall
	DuplicateDeposits int
	RefreshCalls      int
	FetchAccountCalls int

	dedupe map[string]bool
}

// NewMockClient creates a new mock Monzo client
func NewMockClient() *MockClient {
	return &MockClient{
		Balances:         make(map[string]int64),
		Pots:             make(map[string][]Pot),
		FetchBalanceErrs: make(map[string]error),
		dedupe:           make(map[string]bool),
	}
}

func (m *MockClient) AuthURL(state string) string {
	return "https://auth.example.test/?state=" + state
}

func (m *MockClient) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	if m.ExchangeErr != nil {
		return nil, m.ExchangeErr
	}
	return m.ExchangeToken, nil
}

func (m *MockClient) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RefreshCalls++
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	return m.RefreshedToken, nil
}

func (m *MockClient) FetchLinkedAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FetchAccountCalls++
	if len(m.FetchAccountsErrs) > 0 {
		err := m.FetchAccountsErrs[0]
		m.FetchAccountsErrs = m.FetchAccountsErrs[1:]
		if err != nil {
			return nil, err
		}
	} else if m.FetchAccountsErr != nil {
		return nil, m.FetchAccountsErr
	}
	return m.Accounts, nil
}

func (m *MockClient) FetchBalance(ctx context.Context, accessToken, accountID string) (*Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FetchBalanceErrs[accountID]; err != nil {
		return nil, err
	}
	return &Balance{Balance: m.Balances[accountID], Currency: string(models.Currency)}, nil
}

func (m *MockClient) FetchPots(ctx context.Context, accessToken, accountID string) ([]Pot, error) {
	if m.FetchPotsErr != nil {
		return nil, m.FetchPotsErr
	}
	return m.Pots[accountID], nil
}

func (m *MockClient) Deposit(ctx context.Context, accessToken, potID, sourceAccountID string, amount models.Pence, dedupeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DepositErr != nil {
		return m.DepositErr
	}
	if m.dedupe[dedupeID] {
		m.DuplicateDeposits++
		return nil
	}
	m.dedupe[dedupeID] = true
	m.Deposits = append(m.Deposits, DepositCall{
		AccessToken:     accessToken,
		PotID:           potID,
		SourceAccountID: sourceAccountID,
		Amount:          amount,
		DedupeID:        dedupeID,
	})
	m.Balances[sourceAccountID] -= int64(amount)
	return nil
}
