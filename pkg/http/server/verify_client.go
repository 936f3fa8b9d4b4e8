package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vpnda/potpilot/pkg/services"
)

// VerifyClient checks pending approvals against a running server. It
// satisfies services.Verifier so the CLI can poll a remote instance.
type VerifyClient struct {
	BaseURL string
	UserID  string
	HTTP    *http.Client
}

func (c *VerifyClient) Verify(ctx context.Context, pendingID string) (services.ConnectStatus, error) {
	u := strings.TrimSuffix(c.BaseURL, "/") + "/api/auth/monzo/verify-pending?" + url.Values{"pending_id": {pendingID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(UserHeader, c.UserID)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to verify pending approval: %w", err)
	}
	defer resp.Body.Close()

	var body VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode verify response (%s): %w", resp.Status, err)
	}

	switch {
	case body.Pending:
		return services.StatusPending, nil
	case body.Success:
		return services.StatusConnected, nil
	case body.Error == "token_expired":
		return services.StatusExpired, nil
	case body.Error == "pending_not_found":
		return "", services.ErrPendingNotFound
	case body.Error == "forbidden":
		return "", services.ErrPendingForbidden
	}
	return "", fmt.Errorf("verify pending approval failed (%s): %s", resp.Status, body.Error)
}
