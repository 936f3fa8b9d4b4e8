package db

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vpnda/potpilot/pkg/models"
)

// MockDB is a mock implementation of the DB for testing
type MockDB struct {
	mu sync.Mutex

	// Mock data storage
	Automations      map[string]*models.Automation
	LinkedAccounts   map[string]*models.LinkedAccount
	Pots             map[string]*models.Pot
	PendingApprovals map[string]*models.PendingApproval

	// Error values to return
	GetDueAutomationsErr         error
	GetUnscheduledAutomationsErr error
	UpdateNextRunAtErr           error
	UpsertLinkedAccountErr       error
	UpdateCredentialsErr         error
	UpsertPotErr                 error
	SavePendingApprovalErr       error
	GetPendingApprovalErr        error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		Automations:      make(map[string]*models.Automation),
		LinkedAccounts:   make(map[string]*models.LinkedAccount),
		Pots:             make(map[string]*models.Pot),
		PendingApprovals: make(map[string]*models.PendingApproval),
	}
}

// Initialize is a no-op for the mock database
func (m *MockDB) Initialize() error {
	return nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}

func copyAutomation(a *models.Automation) *models.Automation {
	c := *a
	return &c
}

func (m *MockDB) sortedAutomations(keep func(*models.Automation) bool) []*models.Automation {
	var out []*models.Automation
	for _, a := range m.Automations {
		if keep(a) {
			out = append(out, copyAutomation(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MockDB) SaveAutomation(a *models.Automation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Automations[a.ID]; ok {
		return fmt.Errorf("automation with id %s already exists", a.ID)
	}
	m.Automations[a.ID] = copyAutomation(a)
	return nil
}

func (m *MockDB) GetAutomation(id string) (*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Automations[id]
	if !ok {
		return nil, nil
	}
	return copyAutomation(a), nil
}

func (m *MockDB) GetAutomations(userID string) ([]*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sortedAutomations(func(a *models.Automation) bool {
		return userID == "" || a.UserID == userID
	}), nil
}

func (m *MockDB) GetDueAutomations(now time.Time) ([]*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetDueAutomationsErr != nil {
		return nil, m.GetDueAutomationsErr
	}
	due := m.sortedAutomations(func(a *models.Automation) bool {
		return a.IsActive && a.NextRunAt != nil && !a.NextRunAt.After(now)
	})
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextRunAt.Before(*due[j].NextRunAt)
	})
	return due, nil
}

func (m *MockDB) GetUnscheduledAutomations() ([]*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetUnscheduledAutomationsErr != nil {
		return nil, m.GetUnscheduledAutomationsErr
	}
	return m.sortedAutomations(func(a *models.Automation) bool {
		return a.IsActive && a.NextRunAt == nil
	}), nil
}

func (m *MockDB) UpdateNextRunAt(id string, nextRunAt, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateNextRunAtErr != nil {
		return m.UpdateNextRunAtErr
	}
	a, ok := m.Automations[id]
	if !ok {
		return fmt.Errorf("no automation found with id: %s", id)
	}
	a.NextRunAt = lo.ToPtr(nextRunAt)
	a.UpdatedAt = updatedAt
	return nil
}

func (m *MockDB) SetAutomationActive(id string, active bool, nextRunAt *time.Time, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.Automations[id]
	if !ok {
		return fmt.Errorf("no automation found with id: %s", id)
	}
	a.IsActive = active
	a.UpdatedAt = updatedAt
	if nextRunAt != nil {
		a.NextRunAt = lo.ToPtr(*nextRunAt)
	}
	return nil
}

func (m *MockDB) RemoveAutomation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Automations[id]; !ok {
		return fmt.Errorf("no automation found with id: %s", id)
	}
	delete(m.Automations, id)
	return nil
}

func (m *MockDB) UpsertLinkedAccount(acc *models.LinkedAccount) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertLinkedAccountErr != nil {
		return "", m.UpsertLinkedAccountErr
	}

	existing, found := lo.Find(lo.Values(m.LinkedAccounts), func(a *models.LinkedAccount) bool {
		return a.UserID == acc.UserID && a.ProviderAccountID == acc.ProviderAccountID
	})

	c := *acc
	if found {
		c.ID = existing.ID
		c.ConnectedAt = existing.ConnectedAt
	}
	m.LinkedAccounts[c.ID] = &c
	return c.ID, nil
}

func (m *MockDB) GetLinkedAccount(id string) (*models.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.LinkedAccounts[id]
	if !ok {
		return nil, nil
	}
	c := *acc
	return &c, nil
}

func (m *MockDB) GetLinkedAccounts(userID string) ([]*models.LinkedAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var accounts []*models.LinkedAccount
	for _, acc := range m.LinkedAccounts {
		if userID == "" || acc.UserID == userID {
			c := *acc
			accounts = append(accounts, &c)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ProviderAccountID < accounts[j].ProviderAccountID
	})
	return accounts, nil
}

func (m *MockDB) UpdateCredentials(id, accessToken, refreshToken string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateCredentialsErr != nil {
		return m.UpdateCredentialsErr
	}
	acc, ok := m.LinkedAccounts[id]
	if !ok {
		return fmt.Errorf("no linked account found with id: %s", id)
	}
	acc.AccessToken = accessToken
	acc.RefreshToken = refreshToken
	acc.TokenExpiry = lo.ToPtr(expiry)
	return nil
}

func (m *MockDB) UpdateAccountBalance(id string, balance models.Pence, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.LinkedAccounts[id]
	if !ok {
		return fmt.Errorf("no linked account found with id: %s", id)
	}
	acc.Balance = balance
	acc.LastSynced = lo.ToPtr(syncedAt)
	return nil
}

func (m *MockDB) UpsertPot(pot *models.Pot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpsertPotErr != nil {
		return "", m.UpsertPotErr
	}

	c := *pot
	if existing, found := lo.Find(lo.Values(m.Pots), func(p *models.Pot) bool {
		return p.ProviderPotID == pot.ProviderPotID
	}); found {
		c.ID = existing.ID
	}
	m.Pots[c.ID] = &c
	return c.ID, nil
}

func (m *MockDB) GetPot(id string) (*models.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pot, ok := m.Pots[id]
	if !ok {
		return nil, nil
	}
	c := *pot
	return &c, nil
}

func (m *MockDB) GetPots(linkedAccountID string) ([]*models.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pots []*models.Pot
	for _, pot := range m.Pots {
		if pot.LinkedAccountID == linkedAccountID {
			c := *pot
			pots = append(pots, &c)
		}
	}
	sort.Slice(pots, func(i, j int) bool { return pots[i].Name < pots[j].Name })
	return pots, nil
}

func (m *MockDB) SavePendingApproval(p *models.PendingApproval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SavePendingApprovalErr != nil {
		return m.SavePendingApprovalErr
	}
	c := *p
	m.PendingApprovals[p.ID] = &c
	return nil
}

func (m *MockDB) GetPendingApproval(id string) (*models.PendingApproval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetPendingApprovalErr != nil {
		return nil, m.GetPendingApprovalErr
	}
	p, ok := m.PendingApprovals[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (m *MockDB) RemovePendingApproval(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.PendingApprovals, id)
	return nil
}
