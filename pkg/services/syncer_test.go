package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

func newSyncFixture() (*db.MockDB, *monzo.MockClient) {
	client := monzo.NewMockClient()
	client.Accounts = []monzo.Account{
		{ID: "acc_current", Description: "Joint", Type: "uk_retail_joint"},
		{ID: "acc_flex", Description: "monzoflex_0001", Type: ""},
		{ID: "acc_rewards", Type: "uk_rewards"},
	}
	client.Balances["acc_current"] = 12345
	client.Balances["acc_rewards"] = 500
	client.FetchBalanceErrs["acc_flex"] = errors.New("timeout")
	client.Pots["acc_current"] = []monzo.Pot{
		{ID: "pot_holiday", Name: "Holiday", Balance: 10000},
		{ID: "pot_old", Name: "Old", Deleted: true},
	}
	return db.NewMockDB(), client
}

func findAccount(t *testing.T, mockDB *db.MockDB, providerID string) *models.LinkedAccount {
	t.Helper()
	acc, ok := lo.Find(lo.Values(mockDB.LinkedAccounts), func(a *models.LinkedAccount) bool {
		return a.ProviderAccountID == providerID
	})
	require.True(t, ok, "account %s not stored", providerID)
	return acc
}

func TestSyncAccounts(t *testing.T) {
	mockDB, client := newSyncFixture()
	syncer := NewAccountSyncer(client, mockDB, fixedClock(fixedNow))

	result, err := syncer.SyncAccounts(context.Background(), Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 1800}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Accounts)
	assert.Equal(t, 1, result.Pots)
	assert.Empty(t, result.Errors)

	current := findAccount(t, mockDB, "acc_current")
	assert.Equal(t, "Joint", current.Name)
	assert.Equal(t, models.AccountTypeCurrent, current.Type)
	assert.Equal(t, models.Pence(12345), current.Balance)
	assert.Equal(t, "user-1", current.UserID)
	assert.Equal(t, "at", current.AccessToken)
	assert.Equal(t, "rt", current.RefreshToken)
	assert.True(t, fixedNow.Add(30*time.Minute).Equal(*current.TokenExpiry))
	assert.True(t, fixedNow.Add(models.ReconnectAfter).Equal(current.ReconnectBy))
	assert.True(t, current.IsActive)

	flex := findAccount(t, mockDB, "acc_flex")
	assert.Equal(t, models.AccountTypeFlex, flex.Type)
	assert.Zero(t, flex.Balance, "a failed balance fetch stores zero")

	rewards := findAccount(t, mockDB, "acc_rewards")
	assert.Equal(t, models.AccountTypeRewards, rewards.Type)
	assert.Equal(t, "Rewards Account", rewards.Name)

	pots, err := mockDB.GetPots(current.ID)
	require.NoError(t, err)
	require.Len(t, pots, 1)
	assert.Equal(t, "pot_holiday", pots[0].ProviderPotID)
	assert.Equal(t, "Holiday", pots[0].Name)
	assert.Equal(t, models.Pence(10000), pots[0].Balance)
}

func TestSyncAccountsIsIdempotent(t *testing.T) {
	mockDB, client := newSyncFixture()
	syncer := NewAccountSyncer(client, mockDB, fixedClock(fixedNow))
	tokens := Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 1800}

	_, err := syncer.SyncAccounts(context.Background(), tokens, "user-1")
	require.NoError(t, err)
	firstID := findAccount(t, mockDB, "acc_current").ID

	client.Balances["acc_current"] = 1
	_, err = syncer.SyncAccounts(context.Background(), tokens, "user-1")
	require.NoError(t, err)

	assert.Len(t, mockDB.LinkedAccounts, 3)
	assert.Len(t, mockDB.Pots, 1)
	current := findAccount(t, mockDB, "acc_current")
	assert.Equal(t, firstID, current.ID)
	assert.Equal(t, models.Pence(1), current.Balance)
}

func TestSyncAccountsCollectsItemErrors(t *testing.T) {
	mockDB, client := newSyncFixture()
	mockDB.UpsertPotErr = errors.New("constraint failed")
	syncer := NewAccountSyncer(client, mockDB, fixedClock(fixedNow))

	result, err := syncer.SyncAccounts(context.Background(), Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 60}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Accounts)
	assert.Zero(t, result.Pots)
	require.Len(t, result.Errors, 1)
	assert.ErrorContains(t, result.Errors[0], "pot_holiday")
}

func TestSyncAccountsToleratesPotsFailure(t *testing.T) {
	mockDB, client := newSyncFixture()
	client.FetchPotsErr = errors.New("service unavailable")
	syncer := NewAccountSyncer(client, mockDB, fixedClock(fixedNow))

	result, err := syncer.SyncAccounts(context.Background(), Tokens{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 60}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Accounts)
	assert.Zero(t, result.Pots)
	assert.Empty(t, result.Errors)
}

func TestSyncAccountsFetchFailure(t *testing.T) {
	mockDB, client := newSyncFixture()
	client.FetchAccountsErr = &monzo.ForbiddenError{Message: "forbidden"}
	syncer := NewAccountSyncer(client, mockDB, fixedClock(fixedNow))

	_, err := syncer.SyncAccounts(context.Background(), Tokens{AccessToken: "at"}, "user-1")
	assert.True(t, monzo.IsForbidden(err))
	assert.Empty(t, mockDB.LinkedAccounts)
}

func TestRefreshBalances(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 4200)
	seedAccount(mockDB, client, "a2", "p2", 100)
	mockDB.LinkedAccounts["a2"].IsActive = false
	client.Pots["acc_a1"] = []monzo.Pot{{ID: "pot_p1", Name: "Savings", Balance: 900}}

	result, err := NewAccountSyncer(client, mockDB, fixedClock(fixedNow)).RefreshBalances(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accounts)
	assert.Equal(t, 1, result.Pots)

	a1 := mockDB.LinkedAccounts["a1"]
	assert.Equal(t, models.Pence(4200), a1.Balance)
	assert.True(t, fixedNow.Equal(*a1.LastSynced))
	assert.Equal(t, models.Pence(900), mockDB.Pots["p1"].Balance)
	assert.Zero(t, mockDB.LinkedAccounts["a2"].Balance)
}
