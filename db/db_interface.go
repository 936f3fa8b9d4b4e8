package db

import (
	"time"

	"github.com/vpnda/potpilot/pkg/models"
)

// DBInterface defines the interface for database operations
type DBInterface interface {
	Initialize() error
	Close() error

	SaveAutomation(a *models.Automation) error
	GetAutomation(id string) (*models.Automation, error)
	GetAutomations(userID string) ([]*models.Automation, error)
	GetDueAutomations(now time.Time) ([]*models.Automation, error)
	GetUnscheduledAutomations() ([]*models.Automation, error)
	UpdateNextRunAt(id string, nextRunAt, updatedAt time.Time) error
	SetAutomationActive(id string, active bool, nextRunAt *time.Time, updatedAt time.Time) error
	RemoveAutomation(id string) error

	UpsertLinkedAccount(acc *models.LinkedAccount) (string, error)
	GetLinkedAccount(id string) (*models.LinkedAccount, error)
	GetLinkedAccounts(userID string) ([]*models.LinkedAccount, error)
	UpdateCredentials(id, accessToken, refreshToken string, expiry time.Time) error
	UpdateAccountBalance(id string, balance models.Pence, syncedAt time.Time) error

	UpsertPot(pot *models.Pot) (string, error)
	GetPot(id string) (*models.Pot, error)
	GetPots(linkedAccountID string) ([]*models.Pot, error)

	SavePendingApproval(p *models.PendingApproval) error
	GetPendingApproval(id string) (*models.PendingApproval, error)
	RemovePendingApproval(id string) error
}

// Ensure DB implements DBInterface
var _ DBInterface = (*DB)(nil)

// Ensure MockDB implements DBInterface
var _ DBInterface = (*MockDB)(nil)
