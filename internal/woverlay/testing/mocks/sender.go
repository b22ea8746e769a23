package mocks

import (
	"context"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/wrale/wrale-overlay/internal/woverlay/notification"
)

// Sender implements a mock outbound control channel
type Sender struct {
	mock.Mock
	sent atomic.Int32
}

func (m *Sender) Send(payload []byte) error {
	m.sent.Add(1)
	args := m.Called(payload)
	return args.Error(0)
}

// Sent returns how many messages were sent, safe to poll from tests
func (m *Sender) Sent() int {
	return int(m.sent.Load())
}

// Publisher implements a mock lifecycle event publisher
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, event notification.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
