package services

import (
	"time"

	"github.com/samber/lo"

	"github.com/vpnda/potpilot/db"
	"github.com/vpnda/potpilot/pkg/http/monzo"
	"github.com/vpnda/potpilot/pkg/models"
)

// Wednesday 2025-01-15 10:00 UTC
var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// seedAccount stores a linked account with a valid token and one pot
func seedAccount(mockDB *db.MockDB, client *monzo.MockClient, accID, potID string, balance int64) {
	mockDB.LinkedAccounts[accID] = &models.LinkedAccount{
		ID:                accID,
		UserID:            "user-1",
		ProviderAccountID: "acc_" + accID,
		Name:              "Personal",
		Type:              models.AccountTypeCurrent,
		AccessToken:       "access-" + accID,
		RefreshToken:      "refresh-" + accID,
		TokenExpiry:       lo.ToPtr(fixedNow.Add(time.Hour)),
		ReconnectBy:       fixedNow.Add(models.ReconnectAfter),
		IsActive:          true,
		ConnectedAt:       fixedNow.Add(-24 * time.Hour),
	}
	mockDB.Pots[potID] = &models.Pot{
		ID:              potID,
		LinkedAccountID: accID,
		ProviderPotID:   "pot_" + potID,
		Name:            "Savings",
	}
	client.Balances["acc_"+accID] = balance
}

func seedAutomation(mockDB *db.MockDB, id, potID string, amount models.Pence, nextRunAt *time.Time) *models.Automation {
	a := &models.Automation{
		ID:               id,
		UserID:           "user-1",
		Name:             "Automation " + id,
		DestinationPotID: potID,
		Amount:           amount,
		Frequency:        models.FrequencyWeekly,
		DayOfWeek:        lo.ToPtr(int(time.Friday)),
		IsActive:         true,
		NextRunAt:        nextRunAt,
		CreatedAt:        fixedNow.Add(-72 * time.Hour),
		UpdatedAt:        fixedNow.Add(-72 * time.Hour),
	}
	mockDB.Automations[id] = a
	return a
}
