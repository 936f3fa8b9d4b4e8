package services

import (
	"context"
	"errors"
	"time"
)

const (
	DefaultPollInterval = 3 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
)

var ErrApprovalTimeout = errors.New("timed out waiting for approval")

// Verifier checks a pending approval once
type Verifier interface {
	Verify(ctx context.Context, pendingID string) (ConnectStatus, error)
}

type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnPending is called after every pending answer
	OnPending func(attempt int)
}

// PollApproval asks v every interval until the approval is connected or
// expired, an error occurs, or the timeout passes.
func PollApproval(ctx context.Context, v Verifier, pendingID string, opts PollOptions) (ConnectStatus, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPollTimeout
	}

	deadline := time.Now().Add(opts.Timeout)
	for attempt := 1; ; attempt++ {
		status, err := v.Verify(ctx, pendingID)
		if err != nil {
			return "", err
		}
		if status != StatusPending {
			return status, nil
		}
		if opts.OnPending != nil {
			opts.OnPending(attempt)
		}

		if time.Now().Add(opts.Interval).After(deadline) {
			return StatusPending, ErrApprovalTimeout
		}

		select {
		case <-ctx.Done():
			return StatusPending, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

// UserVerifier verifies pending approvals in process on behalf of one user
type UserVerifier struct {
	Service *ConnectionService
	UserID  string
}

func (v UserVerifier) Verify(ctx context.Context, pendingID string) (ConnectStatus, error) {
	return v.Service.Verify(ctx, pendingID, v.UserID)
}
