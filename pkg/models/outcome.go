package models

import "fmt"

type OutcomeStatus string

const (
	OutcomeDeposited         OutcomeStatus = "deposited"
	OutcomeInsufficientFunds OutcomeStatus = "insufficient_funds"
	OutcomeNotFound          OutcomeStatus = "not_found"
	OutcomeFailed            OutcomeStatus = "failed"
)

// Outcome is the result of processing a single automation in a run
type Outcome struct {
	AutomationID string        `json:"id"`
	Success      bool          `json:"success"`
	Status       OutcomeStatus `json:"status"`
	Error        string        `json:"error,omitempty"`
	// Available and Required are set for insufficient funds
	Available *Pence `json:"available,omitempty"`
	Required  *Pence `json:"required,omitempty"`
}

func Deposited(id string) Outcome {
	return Outcome{AutomationID: id, Success: true, Status: OutcomeDeposited}
}

func InsufficientFunds(id string, available, required Pence) Outcome {
	return Outcome{
		AutomationID: id,
		Status:       OutcomeInsufficientFunds,
		Error:        fmt.Sprintf("Insufficient funds: %s available, %s required", available, required),
		Available:    &available,
		Required:     &required,
	}
}

func NotFound(id, msg string) Outcome {
	return Outcome{AutomationID: id, Status: OutcomeNotFound, Error: msg}
}

func Failed(id string, err error) Outcome {
	return Outcome{AutomationID: id, Status: OutcomeFailed, Error: err.Error()}
}

// RunReport summarises one invocation of the automation runner
type RunReport struct {
	Ran     int       `json:"ran"`
	Results []Outcome `json:"results"`
}

// Succeeded counts the automations that deposited
func (r *RunReport) Succeeded() int {
	n := 0
	for _, o := range r.Results {
		if o.Success {
			n++
		}
	}
	return n
}
