package models

import (
	"errors"
	"fmt"
	"time"
)

type Frequency string

const (
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Automation is a recurring transfer from a linked account into one of its pots
type Automation struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	// SourceCreditCardID is the card whose spending the transfer offsets, if any
	SourceCreditCardID *string `json:"sourceCreditCardId,omitempty"`
	// DestinationPotID is the pots row id, not the provider pot id
	DestinationPotID string    `json:"destinationPotId"`
	Amount           Pence     `json:"amount"`
	Frequency        Frequency `json:"frequency"`
	// DayOfWeek is 0 (Sunday) to 6 and only set for weekly automations
	DayOfWeek *int `json:"dayOfWeek,omitempty"`
	// DayOfMonth is 1 to 31 and only set for monthly automations
	DayOfMonth *int `json:"dayOfMonth,omitempty"`
	IsActive   bool `json:"isActive"`
	// NextRunAt is nil until the automation has been scheduled once
	NextRunAt *time.Time `json:"nextRunAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// ValidateRecurrence checks that exactly the recurrence parameter matching
// the frequency is set and in range.
func ValidateRecurrence(freq Frequency, dayOfWeek, dayOfMonth *int) error {
	switch freq {
	case FrequencyWeekly:
		if dayOfWeek == nil || dayOfMonth != nil {
			return fmt.Errorf("%w: weekly requires a day of week only", ErrInvalidRecurrence)
		}
		if *dayOfWeek < 0 || *dayOfWeek > 6 {
			return fmt.Errorf("%w: day of week %d out of range", ErrInvalidRecurrence, *dayOfWeek)
		}
	case FrequencyMonthly:
		if dayOfMonth == nil || dayOfWeek != nil {
			return fmt.Errorf("%w: monthly requires a day of month only", ErrInvalidRecurrence)
		}
		if *dayOfMonth < 1 || *dayOfMonth > 31 {
			return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRecurrence, *dayOfMonth)
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, freq)
	}
	return nil
}

// Validate checks the automation can be stored
func (a *Automation) Validate() error {
	if a.UserID == "" {
		return errors.New("automation has no user")
	}
	if a.DestinationPotID == "" {
		return errors.New("automation has no destination pot")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	return ValidateRecurrence(a.Frequency, a.DayOfWeek, a.DayOfMonth)
}

// Schedule describes the recurrence in words, e.g. "every Wednesday"
func (a *Automation) Schedule() string {
	switch {
	case a.Frequency == FrequencyWeekly && a.DayOfWeek != nil:
		return "every " + time.Weekday(*a.DayOfWeek).String()
	case a.Frequency == FrequencyMonthly && a.DayOfMonth != nil:
		return fmt.Sprintf("monthly on day %d", *a.DayOfMonth)
	}
	return string(a.Frequency)
}
