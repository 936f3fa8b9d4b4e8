package monzo

import (
	"fmt"
	"strings"

	"github.com/vpnda/potpilot/pkg/models"
	"github.com/vpnda/potpilot/pkg/utils"
)

// Token is the response of the OAuth token endpoint
type Token struct {
	AccessToken  string `json:"access_token"`
	ClientID     string `json:"client_id"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

type Account struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Created     string `json:"created"`
	Type        string `json:"type,omitempty"`
	Closed      bool   `json:"closed,omitempty"`
}

type accountsResponse struct {
	Accounts []Account `json:"accounts"`
}

type Balance struct {
	Balance      int64  `json:"balance"`
	TotalBalance int64  `json:"total_balance"`
	Currency     string `json:"currency"`
	SpendToday   int64  `json:"spend_today"`
}

type Pot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Style    string `json:"style"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
	Deleted  bool   `json:"deleted"`
}

type potsResponse struct {
	Pots []Pot `json:"pots"`
}

// Classify maps the provider account type to the types the service tracks.
// Older accounts report no useful type, so the description is checked too.
func (a Account) Classify() models.AccountType {
	switch a.Type {
	case "uk_retail", "uk_retail_joint":
		return models.AccountTypeCurrent
	case "uk_rewards":
		return models.AccountTypeRewards
	case "uk_monzo_flex":
		return models.AccountTypeFlex
	}

	desc := strings.ToLower(a.Description)
	switch {
	case strings.Contains(desc, "monzoflex"):
		return models.AccountTypeFlex
	case strings.Contains(desc, "rewardsoptin"):
		return models.AccountTypeRewards
	}
	return models.AccountTypeOther
}

// DisplayName is the description, falling back to e.g. "Current Account"
func (a Account) DisplayName() string {
	if a.Description != "" {
		return a.Description
	}
	return fmt.Sprintf("%s Account", utils.Capitalize(string(a.Classify())))
}
