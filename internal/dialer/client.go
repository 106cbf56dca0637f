package dialer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"agency_backoffice_backend/platform/config"
	"agency_backoffice_backend/platform/logger"
)

const (
	// insertAttempts bounds the delivery retry loop. The dialer API is
	// flaky enough that one retry pays for itself; more just delays the
	// 502 the caller is going to get anyway.
	insertAttempts = 2

	insertPath = "/v1/leads/insert"
)

// ErrDuplicateLead is returned when the dialer rejects an insert because
// the lead already exists on its side. Never retried: re-sending the same
// lead cannot succeed.
var ErrDuplicateLead = errors.New("dialer rejected lead as duplicate")

// Doer abstracts the HTTP transport for testing.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Convoso lead-insert API.
type Client struct {
	baseURL        string
	attemptTimeout time.Duration
	http           Doer
	log            *logger.Logger
	wait           func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Convoso API client from configuration.
func NewClient(cfg config.DialerConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(cfg.GetConvosoBaseURL(), "/"),
		attemptTimeout: cfg.GetConvosoAttemptTimeout(),
		http:           &http.Client{},
		log:            log,
		wait:           waitBackoff,
	}
}

// waitBackoff blocks for d or until ctx is cancelled, whichever comes first.
func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// insertResponse is the dialer's insert-endpoint envelope.
type insertResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Code    int    `json:"code"`
	Data    struct {
		LeadID json.Number `json:"lead_id"`
	} `json:"data"`
}

// InsertLead delivers one lead to the given dialer list. It makes up to
// insertAttempts attempts with linear backoff (attempt x 1s) between them,
// each bounded by the configured per-attempt timeout. A duplicate rejection
// short-circuits the loop. On success it returns the dialer-side lead ID.
func (c *Client) InsertLead(ctx context.Context, authToken, listID string, lead PushLead) (string, error) {
	params := c.insertParams(authToken, listID, lead)

	var lastErr error
	for attempt := 1; attempt <= insertAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt) * time.Second
			c.log.Warn("retrying dialer insert",
				"attempt", attempt, "backoff", backoff.String(), "error", lastErr)
			if err := c.wait(ctx, backoff); err != nil {
				return "", err
			}
		}

		convosoLeadID, err := c.attemptInsert(ctx, params)
		if err == nil {
			return convosoLeadID, nil
		}
		if errors.Is(err, ErrDuplicateLead) {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

func (c *Client) attemptInsert(ctx context.Context, params url.Values) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		c.baseURL+insertPath, strings.NewReader(params.Encode()))
	if err != nil {
		return "", fmt.Errorf("build insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("dialer insert request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read insert response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("dialer returned status %d", resp.StatusCode)
	}

	var envelope insertResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("decode insert response: %w", err)
	}

	if !envelope.Success {
		if isDuplicateRejection(envelope) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateLead, envelope.Text)
		}
		return "", fmt.Errorf("dialer rejected insert: %s", envelope.Text)
	}

	return envelope.Data.LeadID.String(), nil
}

func (c *Client) insertParams(authToken, listID string, lead PushLead) url.Values {
	params := url.Values{}
	params.Set("auth_token", authToken)
	params.Set("list_id", listID)
	params.Set("phone_number", lead.PhoneNumber)

	setIfPresent := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	setIfPresent("first_name", lead.FirstName)
	setIfPresent("last_name", lead.LastName)
	setIfPresent("email", lead.Email)
	setIfPresent("state", lead.State)
	setIfPresent("city", lead.City)
	setIfPresent("postal_code", lead.ZipCode)
	if lead.Age != nil {
		params.Set("age", strconv.Itoa(*lead.Age))
	}

	return params
}

// isDuplicateRejection recognizes the dialer's duplicate-lead rejection.
// The API signals it in prose rather than a stable code, so the text check
// carries the weight.
func isDuplicateRejection(envelope insertResponse) bool {
	return strings.Contains(strings.ToLower(envelope.Text), "duplicate")
}

// IsTimeout reports whether a delivery error was a per-attempt timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectivity reports whether a delivery error was a transport-level
// failure reaching the dialer (DNS, refused connection, broken pipe).
func IsConnectivity(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
