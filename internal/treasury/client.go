// Package treasury moves funds. The pool engine never touches balances
// directly; every payout, prize transfer, and fee withdrawal goes through the
// treasury service's HMAC-authenticated transfer API.
package treasury

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const transferPath = "/v1/transfers"

// Client is the REST client for the treasury transfer API.
type Client struct {
	baseURL    string
	apiKey     string
	secret     []byte
	httpClient *http.Client

	// nowUnix feeds signature timestamps. Test hook.
	nowUnix func() int64
}

// NewClient creates a treasury client. The secret signs every request; load
// it with LoadSecret.
func NewClient(baseURL, apiKey string, secret []byte) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		nowUnix: func() int64 { return time.Now().Unix() },
	}
}

type transferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type transferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Transfer asks the treasury to move amount to the given address. Any reply
// other than an accepted transfer is an error; the caller decides whether the
// operation it was serving can be unwound.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount uint64) error {
	payload, err := json.Marshal(transferRequest{To: to.Hex(), Amount: amount})
	if err != nil {
		return fmt.Errorf("treasury: marshal transfer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transferPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("treasury: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.signRequest(req, http.MethodPost, transferPath, string(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("treasury: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("treasury: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("treasury: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out transferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("treasury: decode response: %w", err)
	}
	if out.Status != "accepted" && out.Status != "settled" {
		return fmt.Errorf("treasury: transfer %s rejected with status %q", out.ID, out.Status)
	}
	return nil
}

// signRequest adds HMAC authentication headers. The signature is
// HMAC-SHA256(secret, timestamp+method+path+body) encoded as base64.
func (c *Client) signRequest(req *http.Request, method, path, body string) {
	ts := strconv.FormatInt(c.nowUnix(), 10)

	message := ts + method + path + body
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(message))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("X-Treasury-Key", c.apiKey)
	req.Header.Set("X-Treasury-Timestamp", ts)
	req.Header.Set("X-Treasury-Signature", sig)
}
