package db

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpnda/potpilot/pkg/models"
)

func newTestLinkedAccount(id, userID, providerID string) *models.LinkedAccount {
	return &models.LinkedAccount{
		ID:                id,
		UserID:            userID,
		ProviderAccountID: providerID,
		Name:              "Personal",
		Type:              models.AccountTypeCurrent,
		Balance:           10000,
		AccessToken:       "access-" + providerID,
		RefreshToken:      "refresh-" + providerID,
		TokenExpiry:       lo.ToPtr(testNow.Add(time.Hour)),
		ReconnectBy:       testNow.Add(models.ReconnectAfter),
		IsActive:          true,
		LastSynced:        lo.ToPtr(testNow),
		ConnectedAt:       testNow,
	}
}

func TestUpsertLinkedAccount(t *testing.T) {
	db := setupTestDB(t)

	id, err := db.UpsertLinkedAccount(newTestLinkedAccount("row-1", "user-1", "acc_001"))
	require.NoError(t, err)
	assert.Equal(t, "row-1", id)

	// Reconnecting the same provider account keeps the original row
	again := newTestLinkedAccount("row-2", "user-1", "acc_001")
	again.AccessToken = "access-new"
	again.Balance = 4200
	again.ConnectedAt = testNow.Add(time.Hour)
	id, err = db.UpsertLinkedAccount(again)
	require.NoError(t, err)
	assert.Equal(t, "row-1", id)

	got, err := db.GetLinkedAccount("row-1")
	require.NoError(t, err)
	assert.Equal(t, "access-new", got.AccessToken)
	assert.Equal(t, models.Pence(4200), got.Balance)
	assert.True(t, testNow.Equal(got.ConnectedAt))

	missing, err := db.GetLinkedAccount("row-2")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	// The same provider account under another user is a separate row
	id, err = db.UpsertLinkedAccount(newTestLinkedAccount("row-3", "user-2", "acc_001"))
	require.NoError(t, err)
	assert.Equal(t, "row-3", id)

	all, err := db.GetLinkedAccounts("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := db.GetLinkedAccounts("user-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "row-3", mine[0].ID)
}

func TestUpdateCredentials(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.UpsertLinkedAccount(newTestLinkedAccount("row-1", "user-1", "acc_001"))
	require.NoError(t, err)

	expiry := testNow.Add(6 * time.Hour)
	require.NoError(t, db.UpdateCredentials("row-1", "a2", "r2", expiry))

	got, err := db.GetLinkedAccount("row-1")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AccessToken)
	assert.Equal(t, "r2", got.RefreshToken)
	assert.True(t, expiry.Equal(*got.TokenExpiry))

	assert.Error(t, db.UpdateCredentials("missing", "a", "r", expiry))
}

func TestUpdateAccountBalance(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.UpsertLinkedAccount(newTestLinkedAccount("row-1", "user-1", "acc_001"))
	require.NoError(t, err)

	syncedAt := testNow.Add(time.Minute)
	require.NoError(t, db.UpdateAccountBalance("row-1", 123, syncedAt))

	got, err := db.GetLinkedAccount("row-1")
	require.NoError(t, err)
	assert.Equal(t, models.Pence(123), got.Balance)
	assert.True(t, syncedAt.Equal(*got.LastSynced))
}
