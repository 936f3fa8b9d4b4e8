package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

type replState struct {
	ctx context.Context
	app *app
}

func runREPL(ctx context.Context, a *app) {
	fmt.Println("Welcome to the potpilot REPL!")
	fmt.Println("Type 'exit' or 'quit' to exit.")
	fmt.Println("Type 'help' to list the commands.")
	fmt.Println()

	state := &replState{ctx: ctx, app: a}
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")

		if !scanner.Scan() {
			break
		}

		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" {
			continue
		}

		parts := strings.Fields(trimmedLine)
		command, args := parts[0], parts[1:]

		switch command {
		case "exit", "quit":
			return
		case "help":
			printHelp()
		case "config":
			showConfig()
		case "account", "accounts":
			state.handleAccounts(args)
		case "pots":
			state.listPots(args)
		case "automations", "list":
			state.listAutomations(args)
		case "pause", "resume", "delete", "remove":
			state.changeAutomation(command, args)
		case "sync":
			state.syncBalances(args)
		case "run":
			state.runDue()
		default:
			fmt.Printf("Unknown command %q. Type 'help' to list the commands.\n", command)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("Error reading input")
	}
}

// optionalUser returns the first argument, or every user when there is none
func optionalUser(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func (r *replState) listAutomations(args []string) {
	automations, err := r.app.automations.List(optionalUser(args))
	if err != nil {
		log.Error().Err(err).Msg("Error fetching automations")
		return
	}
	printAutomations(automations)
}

func (r *replState) changeAutomation(command string, args []string) {
	if len(args) != 1 {
		fmt.Printf("Usage: %s <automation-id>\n", command)
		return
	}

	id := args[0]
	var err error
	switch command {
	case "pause":
		err = r.app.automations.Pause(id, "")
	case "resume":
		_, err = r.app.automations.Resume(id, "")
	default:
		err = r.app.automations.Delete(id, "")
	}
	if err != nil {
		log.Error().Err(err).Str("automation", id).Msgf("Error running %s", command)
		return
	}
	log.Info().Str("automation", id).Msgf("%s done", command)
}

func (r *replState) syncBalances(args []string) {
	result, err := r.app.syncer.RefreshBalances(r.ctx, optionalUser(args))
	if err != nil {
		log.Error().Err(err).Msg("Error refreshing balances")
		return
	}
	for _, err := range result.Errors {
		log.Warn().Err(err).Msg("Sync error")
	}
	log.Info().Int("accounts", result.Accounts).Int("pots", result.Pots).Msg("Balances refreshed")
}

func (r *replState) runDue() {
	report, err := r.app.runner.TryRun(r.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error running automations")
		return
	}
	printReport(report)
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  help                      - Show this help message")
	fmt.Println("  config                    - Show the current configuration")
	fmt.Println("  account list [user]       - List linked accounts with balances and reconnection status")
	fmt.Println("  pots <account-id>         - List the pots of a linked account")
	fmt.Println("  automations [user]        - List automations")
	fmt.Println("  pause <automation-id>     - Pause an automation")
	fmt.Println("  resume <automation-id>    - Resume an automation from its next occurrence")
	fmt.Println("  delete <automation-id>    - Delete an automation")
	fmt.Println("  sync [user]               - Refresh balances and pots from Monzo")
	fmt.Println("  run                       - Run every due automation now")
	fmt.Println("  exit, quit                - Exit the REPL")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  The application uses a config.yaml file in the current directory.")
	fmt.Println("  Set monzo.clientId and monzo.clientSecret before connecting accounts.")
}
