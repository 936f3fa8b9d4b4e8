package monzo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vpnda/potpilot/pkg/models"
)

const (
	DefaultAPIBase  = "https://api.monzo.com"
	DefaultAuthBase = "https://auth.monzo.com"

	defaultTimeout = 30 * time.Second

	tokenPath    = "/oauth2/token"
	accountsPath = "/accounts"
	balancePath  = "/balance"
	potsPath     = "/pots"
	depositPath  = "/pots/%s/deposit"
)

type Options struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBase      string
	AuthBase     string
	// Transport overrides the HTTP transport, e.g. with a debug round tripper
	Transport http.RoundTripper
}

// Client talks to the Monzo API. It never retries.
type Client struct {
	httpClient   *http.Client
	apiBase      string
	authBase     string
	clientID     string
	clientSecret string
	redirectURI  string
}

func NewClient(opts Options) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: defaultTimeout, Transport: opts.Transport},
		apiBase:      strings.TrimRight(opts.APIBase, "/"),
		authBase:     strings.TrimRight(opts.AuthBase, "/"),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		redirectURI:  opts.RedirectURI,
	}
	if c.apiBase == "" {
		c.apiBase = DefaultAPIBase
	}
	if c.authBase == "" {
		c.authBase = DefaultAuthBase
	}
	return c
}

// AuthURL is where the user is sent to grant access
func (c *Client) AuthURL(state string) string {
	params := url.Values{
		"client_id":     {c.clientID},
		"redirect_uri":  {c.redirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	return c.authBase + "/?" + params.Encode()
}

// ExchangeAuthCode trades an authorization code for tokens
func (c *Client) ExchangeAuthCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	return c.token(ctx, "token exchange", url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"redirect_uri":  {redirectURI},
		"code":          {code},
	})
}

// RefreshToken trades a refresh token for a new access token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Token, error) {
	return c.token(ctx, "token refresh", url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {refreshToken},
	})
}

func (c *Client) token(ctx context.Context, op string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &AuthError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return &tok, nil
}

// FetchLinkedAccounts lists the accounts the token can see. A 403 means the
// user still has to approve access in the app and is returned as a
// ForbiddenError.
func (c *Client) FetchLinkedAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	var out accountsResponse
	if err := c.get(ctx, "fetch accounts", accessToken, accountsPath, nil, &out); err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.StatusCode == http.StatusForbidden {
			return nil, &ForbiddenError{Message: "access token has no permissions yet; the user must approve the connection in the Monzo app"}
		}
		return nil, err
	}
	return out.Accounts, nil
}

// FetchBalance returns the balance of an account in minor units
func (c *Client) FetchBalance(ctx context.Context, accessToken, accountID string) (*Balance, error) {
	var out Balance
	query := url.Values{"account_id": {accountID}}
	if err := c.get(ctx, "fetch balance", accessToken, balancePath, query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchPots lists the pots of an account, including deleted ones
func (c *Client) FetchPots(ctx context.Context, accessToken, accountID string) ([]Pot, error) {
	var out potsResponse
	query := url.Values{"current_account_id": {accountID}}
	if err := c.get(ctx, "fetch pots", accessToken, potsPath, query, &out); err != nil {
		return nil, err
	}
	return out.Pots, nil
}

// Deposit moves amount from the source account into a pot. The provider
// ignores a repeated dedupeID, which makes retries of the same run safe.
func (c *Client) Deposit(ctx context.Context, accessToken, potID, sourceAccountID string, amount models.Pence, dedupeID string) error {
	form := url.Values{
		"source_account_id": {sourceAccountID},
		"amount":            {strconv.FormatInt(int64(amount), 10)},
		"dedupe_id":         {dedupeID},
	}

	endpoint := c.apiBase + fmt.Sprintf(depositPath, url.PathEscape(potID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: "deposit into pot", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Op: "deposit into pot", StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, accessToken, path string, query url.Values, out any) error {
	endpoint := c.apiBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
