// Package messaging sends topic notifications through the Admin SDK's FCM
// client.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	fcm "firebase.google.com/go/v4/messaging"

	"fbadmin/internal/admin"
)

// DefaultBaseURL is the production FCM host
const DefaultBaseURL = "https://fcm.googleapis.com"

// Endpoint is the SDK endpoint for an FCM host
func Endpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return baseURL + "/v1"
}

// Sender is the part of the SDK messaging client used here.
// *messaging.Client from firebase.google.com/go/v4 implements it.
type Sender interface {
	Send(ctx context.Context, message *fcm.Message) (string, error)
	SendDryRun(ctx context.Context, message *fcm.Message) (string, error)
}

var _ Sender = (*fcm.Client)(nil)

// Client sends messages for one project
type Client struct {
	sender  Sender
	metrics admin.Metrics
}

// NewClient wraps an SDK messaging client
func NewClient(sender Sender, metrics admin.Metrics) *Client {
	return &Client{sender: sender, metrics: metrics}
}

// Send delivers req, or only validates it when req.ValidateOnly is set, and
// returns the name of the accepted message
func (c *Client) Send(ctx context.Context, req *Request) (string, error) {
	if req == nil || req.Message == nil {
		return "", fmt.Errorf("%w: message is required", admin.ErrInvalidArgument)
	}

	send, operation := c.sender.Send, "send"
	if req.ValidateOnly {
		send, operation = c.sender.SendDryRun, "send_dry_run"
	}

	start := time.Now()
	name, err := send(ctx, req.Message)
	outcome := admin.OutcomeSuccess
	if err != nil {
		outcome = admin.OutcomeFailure
		err = mapError(err)
	}
	c.metrics.ObserveRemoteCall(admin.ServiceTypeMessaging, operation, outcome, time.Since(start))
	return name, err
}

// Labels printed before the request body
const (
	LabelCommon   = "FCM request body for message using common notification object:"
	LabelOverride = "FCM request body for message containing platform overrides:"
)

// SendAndReport prints the request body under label, sends it and prints the
// outcome the way the quickstart does. The returned error is the send error.
func (c *Client) SendAndReport(ctx context.Context, out io.Writer, label string, req *Request) error {
	pretty, err := prettyRequest(req)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, label)
	_, _ = fmt.Fprintln(out, pretty)

	name, err := c.Send(ctx, req)
	if err != nil {
		if admin.IsRemoteError(err) {
			_, _ = fmt.Fprintln(out, "Unable to send message to Firebase:")
			_, _ = fmt.Fprintln(out, admin.ErrorBody(err))
		}
		return err
	}
	_, _ = fmt.Fprintln(out, "Message sent to Firebase for delivery, response:")
	_, _ = fmt.Fprintln(out, name)
	return nil
}

func prettyRequest(req *Request) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(req); err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
