// Package email sends transactional mail through the Resend HTTP API.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// MaxAttachmentBytes is Resend's total attachment limit.
const MaxAttachmentBytes = 25 * 1024 * 1024

type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	ReplyTo     string
	Attachments []Attachment
}

// AttachmentSize is the combined size of every attachment.
func (m Message) AttachmentSize() int {
	n := 0
	for _, a := range m.Attachments {
		n += len(a.Content)
	}
	return n
}

type ResendClient struct {
	client  *resend.Client
	apiKey  string
	from    string
	replyTo string
}

// ErrPermanent marks failures that another attempt cannot fix.
var ErrPermanent = errors.New("permanent email failure")

// NewResendClient builds a client for the Resend API. An empty baseURL keeps
// the SDK default.
func NewResendClient(baseURL, apiKey, from, replyTo string) *ResendClient {
	client := resend.NewCustomClient(&http.Client{Timeout: 60 * time.Second}, apiKey)
	if baseURL != "" {
		if u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/"); err == nil {
			client.BaseURL = u
		}
	}
	return &ResendClient{
		client:  client,
		apiKey:  apiKey,
		from:    from,
		replyTo: replyTo,
	}
}

// Send delivers msg and returns the provider's message id.
func (c *ResendClient) Send(ctx context.Context, msg Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: RESEND_API_KEY is not configured", ErrPermanent)
	}
	if size := msg.AttachmentSize(); size > MaxAttachmentBytes {
		return "", fmt.Errorf("%w: attachments too large: %d bytes exceeds %d", ErrPermanent, size, MaxAttachmentBytes)
	}

	req := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		ReplyTo: msg.ReplyTo,
	}
	if req.ReplyTo == "" {
		req.ReplyTo = c.replyTo
	}
	for _, a := range msg.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: contentType,
		})
	}

	sent, err := c.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

// Sender is anything that can deliver a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SendWithRetry tries up to attempts times, waiting delay*n after the nth
// failure. Errors wrapping ErrPermanent end the loop at once. It returns the
// message id and how many attempts were made.
func SendWithRetry(ctx context.Context, sender Sender, msg Message, attempts int, delay time.Duration) (string, int, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		id, err := sender.Send(ctx, msg)
		if err == nil {
			return id, attempt, nil
		}
		if errors.Is(err, ErrPermanent) {
			return "", attempt, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", attempt, ctx.Err()
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
	return "", attempts, lastErr
}
