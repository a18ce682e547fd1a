// Package sms delivers one-time passcodes through the SMS vendor.
package sms

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"instantverify/internal/providers"
)

// Sender delivers a text message to an E.164 phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// HTTPSender calls POST {base}/v1/messages.
type HTTPSender struct {
	client *providers.Client
}

func NewHTTPSender(baseURL, apiKey string, timeout time.Duration, opts ...providers.ClientOption) *HTTPSender {
	opts = append([]providers.ClientOption{providers.WithBearerKey(apiKey)}, opts...)
	return &HTTPSender{client: providers.NewClient("sms", baseURL, timeout, opts...)}
}

func (s *HTTPSender) Send(ctx context.Context, phone, message string) error {
	return s.client.DoJSON(ctx, http.MethodPost, "/v1/messages", sendRequest{To: phone, Message: message}, nil)
}

// Message is a text captured by MockSender.
type Message struct {
	Phone string
	Body  string
}

// MockSender records messages instead of sending them. With a logger it also
// writes each message at debug level so local developers can read their codes.
type MockSender struct {
	mu       sync.Mutex
	messages []Message
	logger   *slog.Logger
	Err      error
}

func NewMockSender(logger *slog.Logger) *MockSender {
	return &MockSender{logger: logger}
}

func (m *MockSender) Send(ctx context.Context, phone, message string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	m.messages = append(m.messages, Message{Phone: phone, Body: message})
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.DebugContext(ctx, "sms suppressed by mock sender", "phone", phone, "message", message)
	}
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockSender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Last returns the most recent message to phone.
func (m *MockSender) Last(phone string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Phone == phone {
			return m.messages[i], true
		}
	}
	return Message{}, false
}
