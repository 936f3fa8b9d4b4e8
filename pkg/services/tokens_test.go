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
)

func TestAccessToken(t *testing.T) {
	tests := []struct {
		name        string
		expiry      *time.Time
		wantRefresh bool
	}{
		{name: "valid for an hour", expiry: lo.ToPtr(fixedNow.Add(time.Hour)), wantRefresh: false},
		{name: "valid for just over a minute", expiry: lo.ToPtr(fixedNow.Add(61 * time.Second)), wantRefresh: false},
		{name: "exactly at the refresh window", expiry: lo.ToPtr(fixedNow.Add(60 * time.Second)), wantRefresh: true},
		{name: "already expired", expiry: lo.ToPtr(fixedNow.Add(-time.Hour)), wantRefresh: true},
		{name: "unknown expiry", expiry: nil, wantRefresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDB := db.NewMockDB()
			client := monzo.NewMockClient()
			seedAccount(mockDB, client, "a1", "p1", 0)
			mockDB.LinkedAccounts["a1"].TokenExpiry = tt.expiry
			client.RefreshedToken = &monzo.Token{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 7200}

			acc, err := mockDB.GetLinkedAccount("a1")
			require.NoError(t, err)

			token, err := NewTokenCustodian(client, mockDB, fixedClock(fixedNow)).AccessToken(context.Background(), acc)
			require.NoError(t, err)

			if !tt.wantRefresh {
				assert.Equal(t, "access-a1", token)
				assert.Zero(t, client.RefreshCalls)
				return
			}

			assert.Equal(t, "new-access", token)
			assert.Equal(t, 1, client.RefreshCalls)

			stored := mockDB.LinkedAccounts["a1"]
			assert.Equal(t, "new-access", stored.AccessToken)
			assert.Equal(t, "new-refresh", stored.RefreshToken)
			assert.True(t, fixedNow.Add(2*time.Hour).Equal(*stored.TokenExpiry))

			// The caller's copy is updated too
			assert.Equal(t, "new-refresh", acc.RefreshToken)
		})
	}
}

func TestAccessTokenPersistFailure(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 0)
	mockDB.LinkedAccounts["a1"].TokenExpiry = nil
	mockDB.UpdateCredentialsErr = errors.New("disk full")
	client.RefreshedToken = &monzo.Token{AccessToken: "new-access"}

	acc, _ := mockDB.GetLinkedAccount("a1")
	_, err := NewTokenCustodian(client, mockDB, fixedClock(fixedNow)).AccessToken(context.Background(), acc)
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, "access-a1", acc.AccessToken)
}

func TestAccessTokenRefreshRejected(t *testing.T) {
	mockDB := db.NewMockDB()
	client := monzo.NewMockClient()
	seedAccount(mockDB, client, "a1", "p1", 0)
	mockDB.LinkedAccounts["a1"].TokenExpiry = nil
	client.RefreshErr = &monzo.AuthError{Op: "token refresh", StatusCode: 400, Body: "invalid_grant"}

	acc, _ := mockDB.GetLinkedAccount("a1")
	_, err := NewTokenCustodian(client, mockDB, fixedClock(fixedNow)).AccessToken(context.Background(), acc)
	require.Error(t, err)
	assert.True(t, monzo.IsAuth(err))
}
