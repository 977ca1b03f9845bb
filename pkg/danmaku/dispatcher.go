package danmaku

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tinyland-inc/bilichat/pkg/logger"
)

// maxResponseBody bounds how much of a response is read; send replies are tiny.
const maxResponseBody = 1 << 20

// Doer executes HTTP requests. *session.Session satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type sendResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// Dispatcher posts signed requests and classifies the outcome. It never
// retries.
type Dispatcher struct {
	client Doer
}

func NewDispatcher(client Doer) *Dispatcher {
	return &Dispatcher{client: client}
}

// Send returns nil on success, or one of *APIError, *TransportError and
// *ParseError.
func (d *Dispatcher) Send(ctx context.Context, req *SignedRequest) error {
	httpReq, err := req.HTTPRequest(ctx)
	if err != nil {
		return &TransportError{Err: err}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		logger.DebugCF("danmaku", "Send endpoint returned non-200",
			map[string]any{
				"status": resp.StatusCode,
				"room":   req.RoomID,
			})
		return &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &ParseError{Body: body, Err: err}
	}

	msg := parsed.Message
	if msg == "" {
		msg = parsed.Msg
	}
	if parsed.Code == nil {
		// a reply without a code is a rejection, not a success
		return &APIError{Code: MissingCode, Message: msg}
	}
	if *parsed.Code != 0 {
		return &APIError{Code: *parsed.Code, Message: msg}
	}
	return nil
}
