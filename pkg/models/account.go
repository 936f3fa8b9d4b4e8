package models

import (
	"math"
	"time"
)

type AccountType string

const (
	AccountTypeCurrent AccountType = "current"
	AccountTypeFlex    AccountType = "flex"
	AccountTypeRewards AccountType = "rewards"
	AccountTypeOther   AccountType = "other"
)

// ReconnectAfter is how long a bank grants consent for before the user has to
// reconnect.
const ReconnectAfter = 90 * 24 * time.Hour

// LinkedAccount is a bank account connected through OAuth. The credentials
// never leave the server.
type LinkedAccount struct {
	ID                string      `json:"id"`
	UserID            string      `json:"userId"`
	ProviderAccountID string      `json:"accountId"`
	Name              string      `json:"accountName"`
	Type              AccountType `json:"accountType"`
	Balance           Pence       `json:"balance"`
	AccessToken       string      `json:"-"`
	RefreshToken      string      `json:"-"`
	TokenExpiry       *time.Time  `json:"-"`
	ReconnectBy       time.Time   `json:"reconnectBy"`
	IsActive          bool        `json:"isActive"`
	LastSynced        *time.Time  `json:"lastSynced,omitempty"`
	ConnectedAt       time.Time   `json:"connectedAt"`
}

// Pot is a savings pot owned by a linked account
type Pot struct {
	ID              string     `json:"id"`
	LinkedAccountID string     `json:"linkedAccountId"`
	ProviderPotID   string     `json:"potId"`
	Name            string     `json:"potName"`
	Balance         Pence      `json:"balance"`
	LastSynced      *time.Time `json:"lastSynced,omitempty"`
}

// PendingApproval holds the tokens of a connection the user has not yet
// approved in their banking app.
type PendingApproval struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenExpiry  time.Time
	CreatedAt    time.Time
}

type ReconnectionStatus string

const (
	ReconnectionSafe    ReconnectionStatus = "safe"
	ReconnectionWarning ReconnectionStatus = "warning"
	ReconnectionUrgent  ReconnectionStatus = "urgent"
)

// DaysUntil returns the number of days, rounded up, from now until t
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(t.Sub(now).Hours() / 24))
}

func ReconnectionStatusFor(days int) ReconnectionStatus {
	if days > 30 {
		return ReconnectionSafe
	}
	if days > 10 {
		return ReconnectionWarning
	}
	return ReconnectionUrgent
}

// Reconnection returns the days left until consent expires and how urgent it is
func (a *LinkedAccount) Reconnection(now time.Time) (int, ReconnectionStatus) {
	days := DaysUntil(a.ReconnectBy, now)
	return days, ReconnectionStatusFor(days)
}
