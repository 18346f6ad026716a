// Package kyc talks to the external identity-verification service. The pool
// engine asks it exactly one question before accepting a bet: is this account
// verified as over 18.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const opIsOver18 = "is_over_18"

// Client is the REST client for the verification service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a verification client.
//
// baseURL is the service root, e.g. "https://kyc.internal:8443".
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type checkRequest struct {
	Op      string `json:"op"`
	Account string `json:"account"`
}

type checkResponse struct {
	OK bool `json:"ok"`
}

// IsOver18 asks the verification service whether account has passed the
// age check. A transport failure or a non-2xx reply is an error, never a
// silent false.
func (c *Client) IsOver18(ctx context.Context, account common.Address) (bool, error) {
	payload, err := json.Marshal(checkRequest{Op: opIsOver18, Account: account.Hex()})
	if err != nil {
		return false, fmt.Errorf("kyc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checks", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("kyc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("kyc: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("kyc: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("kyc: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out checkResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("kyc: decode response: %w", err)
	}
	return out.OK, nil
}
