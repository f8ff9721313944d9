// Package cloud adapts the Cloud collaborator described in spec.md section
// 6 (terminal_checkin, authenticate_tag, complete_tag_auth) onto an HTTP
// transport, with client-side rate limiting, retry/backoff, and per-RPC
// correlation IDs for logging — grounded on the rate/backoff/uuid stack
// found in the pack's kgiusti-go-fdo-server and backkem-matter go.mod files
// (neither of which has a cloud-RPC component of its own; those libraries
// are otherwise unused in the pack and are wired here instead of dropped).
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/werkstattwaedi/accesscore/internal/corerr"
	"github.com/werkstattwaedi/accesscore/pkg/corecfg"
)

// CheckinResult is the terminal_checkin response (spec.md section 6):
// either authorized (with optional existing auth_id) or rejected.
type CheckinResult struct {
	Authorized     bool
	UserID         corecfg.Identifier
	UserLabel      corecfg.UserLabel
	AuthID         corecfg.Identifier // empty if the user has no existing auth
	RejectedReason string
}

// Client is the HTTP-backed Cloud collaborator. Rate limiting bounds the
// terminal's outbound RPC rate regardless of tap frequency; backoff retries
// idempotent transport failures (not application-level rejections, which
// are terminal).
type Client struct {
	httpClient *http.Client
	endpoint   string
	limiter    *rate.Limiter
}

// Option configures a Client at construction.
type Option func(*Client)

// WithRateLimit overrides the default 5 req/s, burst-2 outbound limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithHTTPClient overrides the default http.Client (timeouts, transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client against endpoint (the cloud RPC base URL).
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		endpoint:   endpoint,
		limiter:    rate.NewLimiter(5, 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, path string, reqBody, respBody any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return corerr.Wrap(corerr.Unavailable, "cloud.do", err)
	}
	correlationID := uuid.NewString()

	op := func() error {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Correlation-Id", correlationID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err // transport error: retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("cloud: %s returned %d", path, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("cloud: %s returned %d", path, resp.StatusCode))
		}
		if respBody != nil {
			return backoff.Permanent(json.NewDecoder(resp.Body).Decode(respBody))
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(op, policy); err != nil {
		slog.Warn("cloud rpc failed", "path", path, "correlation_id", correlationID, "error", err)
		return corerr.Wrap(corerr.Unavailable, "cloud."+path, err)
	}
	return nil
}

type checkinRequest struct {
	TagUID string `json:"tag_uid"`
}

type checkinResponse struct {
	Status    string `json:"status"` // "authorized" | "rejected"
	UserID    string `json:"user_id,omitempty"`
	UserLabel string `json:"user_label,omitempty"`
	AuthID    string `json:"authentication_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// TerminalCheckin implements terminal_checkin(tag_uid).
func (c *Client) TerminalCheckin(ctx context.Context, tagUID corecfg.TagUid) (CheckinResult, error) {
	var resp checkinResponse
	if err := c.do(ctx, "/terminal_checkin", checkinRequest{TagUID: tagUID.Hex()}, &resp); err != nil {
		return CheckinResult{}, err
	}
	if resp.Status != "authorized" {
		return CheckinResult{Authorized: false, RejectedReason: resp.Message}, nil
	}
	return CheckinResult{
		Authorized: true,
		UserID:     corecfg.NewIdentifier(resp.UserID),
		UserLabel:  corecfg.NewUserLabel(resp.UserLabel),
		AuthID:     corecfg.NewIdentifier(resp.AuthID),
	}, nil
}

type authenticateTagRequest struct {
	TagUID        string `json:"tag_uid"`
	KeyNo         byte   `json:"key_no"`
	EncryptedRndB []byte `json:"encrypted_rnd_b"`
}

type authenticateTagResponse struct {
	AuthID         string `json:"auth_id"`
	CloudChallenge []byte `json:"cloud_challenge"`
}

// AuthenticateTag implements authenticate_tag(tag_uid, key, encrypted_rnd_b),
// satisfying pkg/keyprovider.CloudAuthClient.
func (c *Client) AuthenticateTag(ctx context.Context, tagUID []byte, keyNo byte, encryptedRndB []byte) (string, []byte, error) {
	req := authenticateTagRequest{
		TagUID:        corecfg.NewTagUid(tagUID).Hex(),
		KeyNo:         keyNo,
		EncryptedRndB: encryptedRndB,
	}
	var resp authenticateTagResponse
	if err := c.do(ctx, "/authenticate_tag", req, &resp); err != nil {
		return "", nil, err
	}
	return resp.AuthID, resp.CloudChallenge, nil
}

type completeTagAuthRequest struct {
	AuthID         string `json:"auth_id"`
	EncryptedPart3 []byte `json:"encrypted_part3"`
}

type completeTagAuthResponse struct {
	Rejected  bool   `json:"rejected"`
	Message   string `json:"message,omitempty"`
	EncKey    []byte `json:"enc"`
	MacKey    []byte `json:"mac"`
	TI        []byte `json:"ti"`
	PiccCaps  []byte `json:"picc_caps"`
}

// CompleteTagAuth implements complete_tag_auth(auth_id, encrypted_part3),
// satisfying pkg/keyprovider.CloudAuthClient.
func (c *Client) CompleteTagAuth(ctx context.Context, authID string, encryptedPart3 []byte) (corecfg.SessionKeys, error) {
	const op = "cloud.CompleteTagAuth"
	req := completeTagAuthRequest{AuthID: authID, EncryptedPart3: encryptedPart3}
	var resp completeTagAuthResponse
	if err := c.do(ctx, "/complete_tag_auth", req, &resp); err != nil {
		return corecfg.SessionKeys{}, err
	}
	if resp.Rejected {
		return corecfg.SessionKeys{}, corerr.New(corerr.Unauthenticated, op)
	}
	if len(resp.EncKey) != 16 || len(resp.MacKey) != 16 || len(resp.TI) != 4 {
		return corecfg.SessionKeys{}, corerr.New(corerr.DataLoss, op)
	}
	var keys corecfg.SessionKeys
	copy(keys.EncKey[:], resp.EncKey)
	copy(keys.MacKey[:], resp.MacKey)
	copy(keys.TI[:], resp.TI)
	copy(keys.PiccCaps[:], resp.PiccCaps)
	return keys, nil
}
