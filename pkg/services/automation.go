package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/models"
	"github.com/vpnda/potpilot/pkg/schedule"
)

var ErrNotOwner = errors.New("does not belong to user")

// NewAutomation is the user supplied part of an automation
type NewAutomation struct {
	UserID             string
	Name               string
	SourceCreditCardID *string
	DestinationPotID   string
	Amount             models.Pence
	Frequency          models.Frequency
	DayOfWeek          *int
	DayOfMonth         *int
}

// AutomationManager creates and edits automations. Every automation it
// creates is scheduled immediately.
type AutomationManager struct {
	database db.DBInterface
	now      Clock
	loc      *time.Location
}

func NewAutomationManager(database db.DBInterface, now Clock, loc *time.Location) *AutomationManager {
	if loc == nil {
		loc = time.UTC
	}
	return &AutomationManager{database: database, now: now, loc: loc}
}

func (m *AutomationManager) Create(in NewAutomation) (*models.Automation, error) {
	now := m.now().In(m.loc)
	a := &models.Automation{
		ID:                 uuid.NewString(),
		UserID:             in.UserID,
		Name:               strings.TrimSpace(in.Name),
		SourceCreditCardID: in.SourceCreditCardID,
		DestinationPotID:   in.DestinationPotID,
		Amount:             in.Amount,
		Frequency:          in.Frequency,
		DayOfWeek:          in.DayOfWeek,
		DayOfMonth:         in.DayOfMonth,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if a.Name == "" {
		a.Name = "Save " + in.Amount.String() + " " + a.Schedule()
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := m.checkPotOwner(a.DestinationPotID, a.UserID); err != nil {
		return nil, err
	}

	next, err := schedule.For(a, now)
	if err != nil {
		return nil, err
	}
	a.NextRunAt = &next

	if err := m.database.SaveAutomation(a); err != nil {
		return nil, err
	}
	log.Info().Str("automation", a.ID).Time("next_run_at", next).Msg("Created automation")
	return a, nil
}

func (m *AutomationManager) checkPotOwner(potID, userID string) error {
	pot, err := m.database.GetPot(potID)
	if err != nil {
		return err
	}
	if pot == nil {
		return fmt.Errorf("pot %s %w", potID, ErrNotFound)
	}

	acc, err := m.database.GetLinkedAccount(pot.LinkedAccountID)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("account for pot %s %w", potID, ErrNotFound)
	}
	if acc.UserID != userID {
		return fmt.Errorf("pot %s %w", potID, ErrNotOwner)
	}
	return nil
}

func (m *AutomationManager) get(id, userID string) (*models.Automation, error) {
	a, err := m.database.GetAutomation(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("automation %s %w", id, ErrNotFound)
	}
	if userID != "" && a.UserID != userID {
		return nil, fmt.Errorf("automation %s %w", id, ErrNotOwner)
	}
	return a, nil
}

// Pause stops an automation from running. Its schedule is kept.
func (m *AutomationManager) Pause(id, userID string) error {
	if _, err := m.get(id, userID); err != nil {
		return err
	}
	return m.database.SetAutomationActive(id, false, nil, m.now())
}

// Resume reactivates an automation from the next occurrence after now, so
// occurrences missed while paused are skipped.
func (m *AutomationManager) Resume(id, userID string) (*models.Automation, error) {
	a, err := m.get(id, userID)
	if err != nil {
		return nil, err
	}

	now := m.now().In(m.loc)
	next, err := schedule.For(a, now)
	if err != nil {
		return nil, err
	}
	if err := m.database.SetAutomationActive(id, true, &next, now); err != nil {
		return nil, err
	}

	a.IsActive = true
	a.NextRunAt = &next
	return a, nil
}

func (m *AutomationManager) Delete(id, userID string) error {
	if _, err := m.get(id, userID); err != nil {
		return err
	}
	return m.database.RemoveAutomation(id)
}

func (m *AutomationManager) List(userID string) ([]*models.Automation, error) {
	return m.database.GetAutomations(userID)
}
