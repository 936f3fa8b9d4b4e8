package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/vpnda/potpilot/pkg/config"
	"github.com/vpnda/potpilot/pkg/models"
	"github.com/vpnda/potpilot/pkg/services"
)

var weekdays = lo.SliceToMap(lo.Range(7), func(d int) (string, int) {
	return strings.ToLower(time.Weekday(d).String()), d
})

// parseWeekday accepts 0-6 with Sunday as 0, or a day name or its prefix
func parseWeekday(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if d, err := strconv.Atoi(s); err == nil {
		return d, nil
	}
	if len(s) >= 3 {
		for name, d := range weekdays {
			if strings.HasPrefix(name, s) {
				return d, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown day of week %q", models.ErrInvalidRecurrence, s)
}

func newAutomationManager() (*services.AutomationManager, func() error, error) {
	loc, err := config.GetLocation()
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase()
	if err != nil {
		return nil, nil, err
	}
	return services.NewAutomationManager(database, time.Now, loc), database.Close, nil
}

func newAutomationCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:     "automation",
		Aliases: []string{"automations", "auto"},
		Short:   "Manage recurring pot transfers",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "Owner of the automations")

	var (
		name    string
		potID   string
		amount  string
		weekly  string
		monthly int
		cardID  string
	)
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Create an automation",
		Example: `  potpilot automation add --user u1 --pot <pot-id> --amount 25.50 --weekly friday
  potpilot automation add --user u1 --pot <pot-id> --amount 100 --monthly 31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pence, err := models.ParsePounds(amount)
			if err != nil {
				return err
			}

			in := services.NewAutomation{
				UserID:           userID,
				Name:             name,
				DestinationPotID: potID,
				Amount:           pence,
			}
			if cardID != "" {
				in.SourceCreditCardID = &cardID
			}
			switch {
			case weekly != "" && monthly != 0:
				return errors.New("use either --weekly or --monthly")
			case weekly != "":
				d, err := parseWeekday(weekly)
				if err != nil {
					return err
				}
				in.Frequency = models.FrequencyWeekly
				in.DayOfWeek = &d
			case monthly != 0:
				in.Frequency = models.FrequencyMonthly
				in.DayOfMonth = &monthly
			default:
				return errors.New("one of --weekly or --monthly is required")
			}

			manager, closeDB, err := newAutomationManager()
			if err != nil {
				return err
			}
			defer closeDB()

			a, err := manager.Create(in)
			if err != nil {
				return err
			}
			fmt.Printf("Created %q (%s), next run %s\n", a.Name, a.ID, a.NextRunAt.Format(time.RFC1123))
			return nil
		},
	}
	addCmd.Flags().StringVar(&name, "name", "", "Name of the automation")
	addCmd.Flags().StringVar(&potID, "pot", "", "Destination pot id")
	addCmd.Flags().StringVar(&amount, "amount", "", "Amount in pounds, e.g. 25.50")
	addCmd.Flags().StringVar(&weekly, "weekly", "", "Run weekly on this day (name or 0-6, Sunday is 0)")
	addCmd.Flags().IntVar(&monthly, "monthly", 0, "Run monthly on this day of the month (1-31)")
	addCmd.Flags().StringVar(&cardID, "card", "", "Credit card whose spending this transfer offsets")
	lo.Must0(addCmd.MarkFlagRequired("pot"))
	lo.Must0(addCmd.MarkFlagRequired("amount"))

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List automations",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, closeDB, err := newAutomationManager()
			if err != nil {
				return err
			}
			defer closeDB()

			automations, err := manager.List(userID)
			if err != nil {
				return err
			}
			printAutomations(automations)
			return nil
		},
	}

	byID := func(use, short string, fn func(m *services.AutomationManager, id string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <automation-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				manager, closeDB, err := newAutomationManager()
				if err != nil {
					return err
				}
				defer closeDB()

				if err := fn(manager, args[0]); err != nil {
					return err
				}
				log.Info().Str("automation", args[0]).Msgf("Automation %sd", use)
				return nil
			},
		}
	}

	cmd.AddCommand(
		addCmd,
		listCmd,
		byID("pause", "Stop an automation from running", func(m *services.AutomationManager, id string) error {
			return m.Pause(id, userID)
		}),
		byID("resume", "Resume a paused automation from its next occurrence", func(m *services.AutomationManager, id string) error {
			_, err := m.Resume(id, userID)
			return err
		}),
		byID("delete", "Delete an automation", func(m *services.AutomationManager, id string) error {
			return m.Delete(id, userID)
		}),
	)
	return cmd
}

func printAutomations(automations []*models.Automation) {
	if len(automations) == 0 {
		fmt.Println("No automations found")
		return
	}

	fmt.Printf("Found %d automations:\n\n", len(automations))
	fmt.Printf("%-36s %-25s %12s %-22s %-7s %-20s\n", "ID", "Name", "Amount", "Schedule", "Active", "Next Run")
	fmt.Println(strings.Repeat("-", 130))
	for _, a := range automations {
		next := "not scheduled"
		if a.NextRunAt != nil {
			next = a.NextRunAt.Format("2006-01-02 15:04 MST")
		}
		fmt.Printf("%-36s %-25s %12s %-22s %-7t %-20s\n",
			a.ID,
			a.Name[:min(25, len(a.Name))],
			a.Amount,
			a.Schedule(),
			a.IsActive,
			next)
	}
}
