package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

var nextFriday = time.Date(2025, 1, 17, 9, 0, 0, 0, time.UTC)

func newTestRunner(mockDB *db.MockDB, client *monzo.MockClient) *AutomationRunner {
	return NewAutomationRunner(client, mockDB, fixedClock(fixedNow), time.UTC)
}

func TestRunDeposits(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	prev := fixedNow.Add(-time.Hour)
	seedAutomation(mockDB, "auto-1", "p1", 2500, &prev)

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ran)
	assert.Equal(t, models.Deposited("auto-1"), report.Results[0])

	require.Len(t, client.Deposits, 1)
	deposit := client.Deposits[0]
	assert.Equal(t, "pot_p1", deposit.PotID)
	assert.Equal(t, "acc_a1", deposit.SourceAccountID)
	assert.Equal(t, models.Pence(2500), deposit.Amount)
	assert.Equal(t, "automation-auto-1-2025-01-15T09:00:00Z", deposit.DedupeID)
	assert.Equal(t, "access-a1", deposit.AccessToken)

	assert.True(t, nextFriday.Equal(*mockDB.Automations["auto-1"].NextRunAt))
	assert.True(t, fixedNow.Equal(mockDB.Automations["auto-1"].UpdatedAt))
}

func TestRunNothingDue(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	seedAutomation(mockDB, "future", "p1", 2500, lo.ToPtr(fixedNow.Add(time.Hour)))
	paused := seedAutomation(mockDB, "paused", "p1", 2500, nil)
	paused.IsActive = false

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Ran)
	assert.Empty(t, report.Results)
	assert.Empty(t, client.Deposits)
}

func TestRunBackfillsUnscheduled(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	seedAutomation(mockDB, "never-scheduled", "p1", 1000, nil)

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, report.Ran)
	assert.True(t, report.Results[0].Success)
	// Without a previous occurrence the key falls back to the run time
	assert.Equal(t, "automation-never-scheduled-2025-01-15T10:00:00Z", client.Deposits[0].DedupeID)
	assert.True(t, nextFriday.Equal(*mockDB.Automations["never-scheduled"].NextRunAt))
}

func TestSelectDueDeduplicates(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAutomation(mockDB, "due", "p1", 100, lo.ToPtr(fixedNow.Add(-time.Minute)))
	seedAutomation(mockDB, "backfill", "p1", 100, nil)

	runner := newTestRunner(mockDB, client)
	due, err := runner.SelectDue(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"due", "backfill"}, lo.Map(due, func(a *models.Automation, _ int) string { return a.ID }))
}

func TestSelectDueFailsOnQueryError(t *testing.T) {
	mockDB := db.NewMockDB()
	mockDB.GetDueAutomationsErr = errors.New("connection refused")

	_, err := newTestRunner(mockDB, monzo.NewMockClient()).Run(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestRunInsufficientFunds(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 1200)
	prev := fixedNow.Add(-time.Hour)
	seedAutomation(mockDB, "auto-1", "p1", 2500, &prev)

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Results[0]
	assert.False(t, outcome.Success)
	assert.Equal(t, models.OutcomeInsufficientFunds, outcome.Status)
	assert.Equal(t, models.Pence(1200), *outcome.Available)
	assert.Equal(t, models.Pence(2500), *outcome.Required)
	assert.Contains(t, outcome.Error, "Insufficient funds")

	assert.Empty(t, client.Deposits)
	next := mockDB.Automations["auto-1"].NextRunAt
	assert.True(t, next.After(prev))
	assert.True(t, nextFriday.Equal(*next))
}

func TestRunIsolatesFailures(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "healthy", "p-healthy", 10000)
	seedAccount(mockDB, client, "broken", "p-broken", 10000)
	client.FetchBalanceErrs["acc_broken"] = &monzo.ProviderError{Op: "fetch balance", StatusCode: http.StatusInternalServerError, Status: "Internal Server Error"}

	// Missing account behind an existing pot
	mockDB.Pots["p-orphan"] = &models.Pot{ID: "p-orphan", LinkedAccountID: "gone", ProviderPotID: "pot_orphan"}

	prev := fixedNow.Add(-time.Hour)
	a1 := seedAutomation(mockDB, "1-broken", "p-broken", 100, &prev)
	a1.CreatedAt = fixedNow.Add(-5 * time.Hour)
	a2 := seedAutomation(mockDB, "2-healthy", "p-healthy", 100, &prev)
	a2.CreatedAt = fixedNow.Add(-4 * time.Hour)
	a3 := seedAutomation(mockDB, "3-no-pot", "p-missing", 100, &prev)
	a3.CreatedAt = fixedNow.Add(-3 * time.Hour)
	a4 := seedAutomation(mockDB, "4-no-account", "p-orphan", 100, &prev)
	a4.CreatedAt = fixedNow.Add(-2 * time.Hour)

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, report.Ran)

	byID := lo.KeyBy(report.Results, func(o models.Outcome) string { return o.AutomationID })

	assert.Equal(t, models.OutcomeFailed, byID["1-broken"].Status)
	assert.Contains(t, byID["1-broken"].Error, "fetch balance")
	assert.True(t, prev.Equal(*mockDB.Automations["1-broken"].NextRunAt), "failed automation keeps its schedule")

	assert.True(t, byID["2-healthy"].Success)

	assert.Equal(t, models.NotFound("3-no-pot", "Pot not found"), byID["3-no-pot"])
	assert.Equal(t, models.NotFound("4-no-account", "Monzo account not found"), byID["4-no-account"])

	assert.Len(t, client.Deposits, 1)
	assert.Equal(t, 1, report.Succeeded())
}

func TestRunRefreshesExpiringToken(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	// Inside the refresh window
	mockDB.LinkedAccounts["a1"].TokenExpiry = lo.ToPtr(fixedNow.Add(30 * time.Second))
	client.RefreshedToken = &monzo.Token{AccessToken: "fresh-access", ExpiresIn: 0}
	seedAutomation(mockDB, "auto-1", "p1", 100, lo.ToPtr(fixedNow))

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Results[0].Success)

	assert.Equal(t, 1, client.RefreshCalls)
	assert.Equal(t, "fresh-access", client.Deposits[0].AccessToken)

	acc := mockDB.LinkedAccounts["a1"]
	assert.Equal(t, "fresh-access", acc.AccessToken)
	// No new refresh token keeps the old one
	assert.Equal(t, "refresh-a1", acc.RefreshToken)
	// expires_in defaults to an hour
	assert.True(t, fixedNow.Add(time.Hour).Equal(*acc.TokenExpiry))
}

func TestRunRefreshFailureFailsOnlyThatAutomation(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	mockDB.LinkedAccounts["a1"].TokenExpiry = nil
	client.RefreshErr = &monzo.AuthError{Op: "token refresh", StatusCode: http.StatusUnauthorized, Body: "bad refresh token"}
	seedAutomation(mockDB, "auto-1", "p1", 100, lo.ToPtr(fixedNow))

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Results[0]
	assert.Equal(t, models.OutcomeFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "bad refresh token")
	assert.Empty(t, client.Deposits)
}

func TestRunDepositFailureKeepsSchedule(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	client.DepositErr = &monzo.ProviderError{Op: "deposit into pot", StatusCode: http.StatusBadRequest, Status: "Bad Request"}
	prev := fixedNow.Add(-time.Hour)
	seedAutomation(mockDB, "auto-1", "p1", 100, &prev)

	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "failed to deposit into pot: Bad Request", report.Results[0].Error)
	assert.True(t, prev.Equal(*mockDB.Automations["auto-1"].NextRunAt))
}

func TestRerunAfterLostRescheduleDoesNotDepositTwice(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 10000)
	prev := fixedNow.Add(-time.Hour)
	seedAutomation(mockDB, "auto-1", "p1", 100, &prev)

	// The deposit goes through but the schedule write is lost
	mockDB.UpdateNextRunAtErr = errors.New("database is locked")
	report, err := newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Results[0].Success)
	assert.Contains(t, report.Results[0].Error, "deposited but failed to reschedule")

	mockDB.UpdateNextRunAtErr = nil
	report, err = newTestRunner(mockDB, client).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Results[0].Success)

	assert.Len(t, client.Deposits, 1)
	assert.Equal(t, 1, client.DuplicateDeposits)
}

func TestDedupeKey(t *testing.T) {
	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	prev := time.Date(2025, 6, 4, 9, 0, 0, 0, london)
	a := &models.Automation{ID: "abc", NextRunAt: &prev}
	assert.Equal(t, "automation-abc-2025-06-04T08:00:00Z", DedupeKey(a, fixedNow))
	assert.Equal(t, DedupeKey(a, fixedNow), DedupeKey(a, fixedNow.Add(time.Hour)))

	a.NextRunAt = nil
	assert.Equal(t, "automation-abc-2025-01-15T10:00:00Z", DedupeKey(a, fixedNow))
}

func TestTryRunRejectsOverlap(t *testing.T) {
	runner := newTestRunner(db.NewMockDB(), monzo.NewMockClient())

	runner.mu.Lock()
	_, err := runner.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	runner.mu.Unlock()

	report, err := runner.TryRun(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Ran)
}
