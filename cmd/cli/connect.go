package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpnda/potpilot/pkg/http/server"
	"github.com/vpnda/potpilot/pkg/services"
)

func newConnectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Follow a Monzo connection",
	}

	var (
		userID    string
		serverURL string
		interval  time.Duration
		timeout   time.Duration
	)
	waitCmd := &cobra.Command{
		Use:   "wait <pending-id>",
		Short: "Wait until a pending connection is approved in the Monzo app",
		Long: `Poll a pending connection until the user approves it in the Monzo app, it
expires, or the timeout passes. With --server the running instance is asked over
HTTP, otherwise the database is checked directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			var verifier services.Verifier
			if serverURL != "" {
				verifier = &server.VerifyClient{BaseURL: serverURL, UserID: userID}
			} else {
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.Close()
				verifier = services.UserVerifier{Service: a.connections, UserID: userID}
			}

			fmt.Println("Approve the connection in the Monzo app...")
			status, err := services.PollApproval(cmd.Context(), verifier, args[0], services.PollOptions{
				Interval: interval,
				Timeout:  timeout,
				OnPending: func(attempt int) {
					fmt.Printf("Still waiting for approval (attempt %d)\n", attempt)
				},
			})
			if err != nil {
				return err
			}

			switch status {
			case services.StatusConnected:
				fmt.Println("Monzo connected")
			case services.StatusExpired:
				return errors.New("the pending connection expired, connect again")
			}
			return nil
		},
	}
	waitCmd.Flags().StringVar(&userID, "user", "", "User who started the connection")
	waitCmd.Flags().StringVar(&serverURL, "server", "", "Base URL of a running potpilot server")
	waitCmd.Flags().DurationVar(&interval, "interval", services.DefaultPollInterval, "Time between checks")
	waitCmd.Flags().DurationVar(&timeout, "timeout", services.DefaultPollTimeout, "Give up after this long")

	cmd.AddCommand(waitCmd)
	return cmd
}
