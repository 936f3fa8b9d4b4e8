package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
	"github.com/vpnda/potpilot/pkg/schedule"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrRunInProgress = errors.New("an automation run is already in progress")
)

// AutomationRunner executes every due automation once, one at a time
type AutomationRunner struct {
	mu sync.Mutex

	client   monzo.ClientInterface
	database db.DBInterface
	tokens   *TokenCustodian
	now      Clock
	loc      *time.Location
}

func NewAutomationRunner(client monzo.ClientInterface, database db.DBInterface, now Clock, loc *time.Location) *AutomationRunner {
	if loc == nil {
		loc = time.UTC
	}
	return &AutomationRunner{
		client:   client,
		database: database,
		tokens:   NewTokenCustodian(client, database, now),
		now:      now,
		loc:      loc,
	}
}

// SelectDue returns active automations due at now plus those that were
// never scheduled, each once.
func (r *AutomationRunner) SelectDue(now time.Time) ([]*models.Automation, error) {
	due, err := r.database.GetDueAutomations(now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due automations: %w", err)
	}

	unscheduled, err := r.database.GetUnscheduledAutomations()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to get unscheduled automations, running due ones only")
	}

	all := append(due, unscheduled...)
	all = lo.Filter(all, func(a *models.Automation, _ int) bool {
		return a.IsActive && (a.NextRunAt == nil || !a.NextRunAt.After(now))
	})
	return lo.UniqBy(all, func(a *models.Automation) string { return a.ID }), nil
}

// Run processes the due set and reports one outcome per automation. Only a
// failure to read the due set is returned as an error.
func (r *AutomationRunner) Run(ctx context.Context) (*models.RunReport, error) {
	now := r.now().In(r.loc)

	automations, err := r.SelectDue(now)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{Results: make([]models.Outcome, 0, len(automations))}
	for _, a := range automations {
		outcome := r.runOne(ctx, a, now)
		report.Results = append(report.Results, outcome)

		event := log.Info()
		if !outcome.Success {
			event = log.Warn()
		}
		event.Str("automation", a.ID).Str("status", string(outcome.Status)).Str("error", outcome.Error).Msg("Processed automation")
	}
	report.Ran = len(report.Results)

	log.Info().Int("ran", report.Ran).Int("succeeded", report.Succeeded()).Msg("Automation run finished")
	return report, nil
}

// TryRun is Run guarded by a lock shared by every trigger. It returns
// ErrRunInProgress instead of waiting when another run holds the lock.
func (r *AutomationRunner) TryRun(ctx context.Context) (*models.RunReport, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()
	return r.Run(ctx)
}

func (r *AutomationRunner) runOne(ctx context.Context, a *models.Automation, now time.Time) models.Outcome {
	pot, acc, err := r.resolve(a)
	if errors.Is(err, ErrNotFound) {
		return models.NotFound(a.ID, err.Error())
	} else if err != nil {
		return models.Failed(a.ID, err)
	}

	accessToken, err := r.tokens.AccessToken(ctx, acc)
	if err != nil {
		return models.Failed(a.ID, err)
	}

	balance, err := r.client.FetchBalance(ctx, accessToken, acc.ProviderAccountID)
	if err != nil {
		return models.Failed(a.ID, err)
	}

	available := models.Pence(balance.Balance)
	if available < a.Amount {
		if err := r.reschedule(a, now); err != nil {
			return models.Failed(a.ID, err)
		}
		return models.InsufficientFunds(a.ID, available, a.Amount)
	}

	err = r.client.Deposit(ctx, accessToken, pot.ProviderPotID, acc.ProviderAccountID, a.Amount, DedupeKey(a, now))
	if err != nil {
		return models.Failed(a.ID, err)
	}

	// A failed write here is retried on the next run with the same key
	if err := r.reschedule(a, now); err != nil {
		return models.Failed(a.ID, fmt.Errorf("deposited but %w", err))
	}
	return models.Deposited(a.ID)
}

func (r *AutomationRunner) resolve(a *models.Automation) (*models.Pot, *models.LinkedAccount, error) {
	pot, err := r.database.GetPot(a.DestinationPotID)
	if err != nil {
		return nil, nil, err
	}
	if pot == nil {
		return nil, nil, fmt.Errorf("Pot %w", ErrNotFound)
	}

	acc, err := r.database.GetLinkedAccount(pot.LinkedAccountID)
	if err != nil {
		return nil, nil, err
	}
	if acc == nil {
		return nil, nil, fmt.Errorf("Monzo account %w", ErrNotFound)
	}
	return pot, acc, nil
}

func (r *AutomationRunner) reschedule(a *models.Automation, now time.Time) error {
	next, err := schedule.For(a, now)
	if err != nil {
		return err
	}
	if err := r.database.UpdateNextRunAt(a.ID, next, now); err != nil {
		return fmt.Errorf("failed to reschedule: %w", err)
	}
	a.NextRunAt = &next
	return nil
}

// DedupeKey identifies one scheduled occurrence of an automation. It is
// derived from the occurrence being executed, so a retried run reuses it.
func DedupeKey(a *models.Automation, now time.Time) string {
	occurrence := now
	if a.NextRunAt != nil {
		occurrence = *a.NextRunAt
	}
	return fmt.Sprintf("automation-%s-%s", a.ID, occurrence.UTC().Format(time.RFC3339))
}
