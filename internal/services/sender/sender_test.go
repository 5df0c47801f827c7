package sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) SendText(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestSenderService_Send(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		setupMocks    func(*MockTransport)
		expectedError bool
		malformed     bool
	}{
		{
			name: "success",
			body: `{"chat_id":10,"text":"hello","job_id":"j"}`,
			setupMocks: func(m *MockTransport) {
				m.On("SendText", mock.Anything, int64(10), "hello").Return(nil).Once()
			},
		},
		{
			name: "transport error",
			body: `{"chat_id":10,"text":"hello"}`,
			setupMocks: func(m *MockTransport) {
				m.On("SendText", mock.Anything, int64(10), "hello").Return(errors.New("429 Too Many Requests")).Once()
			},
			expectedError: true,
		},
		{
			name:          "invalid json",
			body:          `{"chat_id":`,
			setupMocks:    func(*MockTransport) {},
			expectedError: true,
			malformed:     true,
		},
		{
			name:          "missing recipient",
			body:          `{"text":"hello"}`,
			setupMocks:    func(*MockTransport) {},
			expectedError: true,
			malformed:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			tt.setupMocks(transport)
			s := NewSenderService(transport, nil, newNoopLogger())

			err := s.Send(context.Background(), []byte(tt.body))
			if tt.expectedError {
				assert.Error(t, err)
				assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformed))
			} else {
				assert.NoError(t, err)
			}
			transport.AssertExpectations(t)
		})
	}
}

func TestSenderService_Handler(t *testing.T) {
	transport := new(MockTransport)
	transport.On("SendText", mock.Anything, int64(1), "x").Return(errors.New("timeout")).Once()
	handler := NewSenderService(transport, nil, newNoopLogger()).Handler(context.Background())

	assert.NoError(t, handler([]byte("not json")), "malformed messages are dropped, not requeued")
	assert.Error(t, handler([]byte(`{"chat_id":1,"text":"x"}`)), "delivery errors are requeued")
}
