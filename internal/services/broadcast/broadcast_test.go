package broadcast

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/storage/memstore"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendText(ctx context.Context, chatID int64, text string) error {
	args := m.Called(ctx, chatID, text)
	return args.Error(0)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) NotifyOperator(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
}

type failingSource struct {
	after int
}

func (f failingSource) Accounts(_ context.Context, _ int) iter.Seq2[models.Account, error] {
	return func(yield func(models.Account, error) bool) {
		for i := range f.after {
			if !yield(models.Account{ExternalID: int64(i + 1)}, nil) {
				return
			}
		}
		yield(models.Account{}, errors.New("connection reset"))
	}
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func populated(t *testing.T, n int) *memstore.Store {
	t.Helper()
	store := memstore.New()
	for id := 1; id <= n; id++ {
		_, err := store.GetOrCreate(context.Background(), int64(id), models.Profile{}, time.Now())
		require.NoError(t, err)
	}
	return store
}

func TestService_Run_CountsFailures(t *testing.T) {
	store := populated(t, 5)
	sender := new(MockSender)
	sender.On("SendText", mock.Anything, int64(2), "news").Return(errors.New("bot was blocked by the user")).Once()
	sender.On("SendText", mock.Anything, int64(4), "news").Return(errors.New("chat not found")).Once()
	sender.On("SendText", mock.Anything, mock.Anything, "news").Return(nil)

	s := New(store, DirectDelivery{Sender: sender}, nil, &recordingNotifier{}, nil, newNoopLogger())

	report, err := s.Run(context.Background(), "job-1", "news")
	require.NoError(t, err)
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 2, report.Failed)
	sender.AssertNumberOfCalls(t, "SendText", 5)
}

func TestService_Run_SourceError(t *testing.T) {
	sender := new(MockSender)
	sender.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	s := New(failingSource{after: 2}, DirectDelivery{Sender: sender}, nil, &recordingNotifier{}, nil, newNoopLogger())

	report, err := s.Run(context.Background(), "job-2", "news")
	require.Error(t, err)
	assert.Equal(t, 2, report.Sent)
}

func TestService_Run_Paced(t *testing.T) {
	store := populated(t, 3)
	sender := new(MockSender)
	sender.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)
	s := New(store, DirectDelivery{Sender: sender}, limiter, &recordingNotifier{}, nil, newNoopLogger())

	start := time.Now()
	report, err := s.Run(context.Background(), "job-3", "news")
	require.NoError(t, err)
	assert.Equal(t, 3, report.Sent)
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestService_Run_Cancelled(t *testing.T) {
	store := populated(t, 3)
	sender := new(MockSender)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(store, DirectDelivery{Sender: sender}, nil, &recordingNotifier{}, nil, newNoopLogger())
	_, err := s.Run(ctx, "job-4", "news")
	require.ErrorIs(t, err, context.Canceled)
	sender.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Start_NotifiesReport(t *testing.T) {
	store := populated(t, 2)
	sender := new(MockSender)
	sender.On("SendText", mock.Anything, mock.Anything, "hello").Return(nil)
	notifier := &recordingNotifier{}

	s := New(store, DirectDelivery{Sender: sender}, nil, notifier, nil, newNoopLogger())

	jobID := s.Start(context.Background(), "hello")
	require.NotEmpty(t, jobID)
	s.Wait()

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0], jobID)
	assert.Contains(t, notifier.messages[0], "Sent: 2")
}
