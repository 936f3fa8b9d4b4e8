package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/potpilot/pkg/models"
	"github.com/vpnda/potpilot/pkg/utils"
)

func (r *replState) handleAccounts(args []string) {
	if len(args) > 0 && (args[0] == "list" || args[0] == "l") {
		args = args[1:]
	}

	accounts, err := r.app.db.GetLinkedAccounts(optionalUser(args))
	if err != nil {
		log.Error().Err(err).Msg("Error fetching accounts")
		return
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found")
		return
	}

	now := time.Now()
	fmt.Printf("Found %d accounts:\n\n", len(accounts))
	fmt.Printf("%-36s %-25s %-10s %12s %-7s %-22s\n", "ID", "Account Name", "Type", "Balance", "Active", "Reconnect")
	fmt.Println(strings.Repeat("-", 120))
	for _, account := range accounts {
		days, status := account.Reconnection(now)
		fmt.Printf("%-36s %-25s %-10s %12s %-7t %-22s\n",
			account.ID,
			account.Name[:min(25, len(account.Name))],
			utils.Capitalize(string(account.Type)),
			account.Balance,
			account.IsActive,
			fmt.Sprintf("%d days (%s)", days, status))
	}

	urgent := lo.Filter(accounts, func(a *models.LinkedAccount, _ int) bool {
		_, status := a.Reconnection(now)
		return status == models.ReconnectionUrgent
	})
	if len(urgent) > 0 {
		fmt.Printf("\n%d accounts need to be reconnected soon.\n", len(urgent))
	}
}

func (r *replState) listPots(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: pots <account-id>")
		return
	}

	pots, err := r.app.db.GetPots(args[0])
	if err != nil {
		log.Error().Err(err).Msg("Error fetching pots")
		return
	}

	if len(pots) == 0 {
		fmt.Println("No pots found")
		return
	}

	fmt.Printf("Found %d pots:\n\n", len(pots))
	fmt.Printf("%-36s %-30s %12s %-20s\n", "ID", "Pot Name", "Balance", "Last Synced")
	fmt.Println(strings.Repeat("-", 100))
	for _, pot := range pots {
		synced := "never"
		if pot.LastSynced != nil {
			synced = pot.LastSynced.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-36s %-30s %12s %-20s\n",
			pot.ID,
			pot.Name[:min(30, len(pot.Name))],
			pot.Balance,
			synced)
	}
}
