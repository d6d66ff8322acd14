package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"quoteflow/common"
	"quoteflow/domain"
)

// Client talks to the quoteflow API. Every call is made on behalf of the
// given session and fails with common.ErrNotAuthenticated before touching the
// network when the session has no token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewDefaultClient targets the server configured through QF_SERVER_URL or
// QF_SERVER_HOST/QF_SERVER_PORT.
func NewDefaultClient() *Client {
	return NewClient(common.GetServerBaseURL())
}

type errorResponse struct {
	Error string `json:"error"`
}

// request describes one api call. ok lists the accepted statuses, defaulting
// to 200.
type request struct {
	op     string
	method string
	path   string
	body   interface{}
	out    interface{}
	ok     []int
}

func (c *Client) do(ctx context.Context, session domain.UserSession, r request) error {
	if !session.IsAuthenticated() {
		return common.ErrNotAuthenticated
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", r.op, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+"/api/v1"+r.path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", r.op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if r.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &common.TransportError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &common.TransportError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	ok := r.ok
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	if !slices.Contains(ok, resp.StatusCode) {
		return statusError(r.op, resp.StatusCode, bodyBytes)
	}

	if r.out != nil {
		if err := json.Unmarshal(bodyBytes, r.out); err != nil {
			return &common.TransportError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
	}
	return nil
}

// statusError maps an api error response back onto the error taxonomy.
func statusError(op string, statusCode int, body []byte) error {
	message := string(body)
	var errResp errorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = errResp.Error
	}

	switch statusCode {
	case http.StatusBadRequest:
		return common.NewValidationError("", message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, common.ErrNotAuthenticated)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %s", op, common.ErrNotFound, message)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w: %s", op, common.ErrConflict, message)
	default:
		return &common.TransportError{Op: op, StatusCode: statusCode, Err: errors.New(message)}
	}
}
