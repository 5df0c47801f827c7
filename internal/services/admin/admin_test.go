package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sergeycommit/ai-tg-bot/internal/migrations"
	"github.com/sergeycommit/ai-tg-bot/internal/models"
	"github.com/sergeycommit/ai-tg-bot/internal/storage/memstore"
)

type MockEvolver struct {
	mock.Mock
}

func (m *MockEvolver) Evolve(ctx context.Context) (migrations.Report, error) {
	args := m.Called(ctx)
	return args.Get(0).(migrations.Report), args.Error(1)
}

type MockActivation struct {
	mock.Mock
}

func (m *MockActivation) Activate(ctx context.Context, externalID int64, d time.Duration) (*models.Account, error) {
	args := m.Called(ctx, externalID, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockActivation) Grant(ctx context.Context, externalID int64, planID string) (*models.Account, error) {
	args := m.Called(ctx, externalID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Start(ctx context.Context, text string) string {
	args := m.Called(ctx, text)
	return args.String(0)
}

type migrationRecorder struct {
	added, failed int
	err           error
	calls         int
}

func (r *migrationRecorder) ObserveMigration(added, failed int, err error) {
	r.added, r.failed, r.err = added, failed, err
	r.calls++
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

// blockingEvolver держит прогон до закрытия release.
type blockingEvolver struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingEvolver) Evolve(context.Context) (migrations.Report, error) {
	close(b.started)
	<-b.release
	return migrations.Report{}, nil
}

func TestService_Migrate(t *testing.T) {
	t.Run("success is recorded", func(t *testing.T) {
		evolver := new(MockEvolver)
		evolver.On("Evolve", mock.Anything).Return(migrations.Report{Added: []string{"users.username"}}, nil).Once()
		rec := &migrationRecorder{}
		s := New(evolver, nil, nil, nil, nil, rec, newNoopLogger())

		report, err := s.Migrate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"users.username"}, report.Added)
		assert.Equal(t, 1, rec.calls)
		assert.Equal(t, 1, rec.added)
		assert.NoError(t, rec.err)
	})

	t.Run("failure is recorded and returned", func(t *testing.T) {
		evolver := new(MockEvolver)
		failed := migrations.Report{Failed: []migrations.Failure{{Table: "users", Column: "user_id", Critical: true}}}
		evolver.On("Evolve", mock.Anything).Return(failed, models.ErrMigrationStepFailed).Once()
		rec := &migrationRecorder{}
		s := New(evolver, nil, nil, nil, nil, rec, newNoopLogger())

		report, err := s.Migrate(context.Background())
		assert.ErrorIs(t, err, models.ErrMigrationStepFailed)
		assert.Len(t, report.Failed, 1)
		assert.Equal(t, 1, rec.failed)
		assert.Error(t, rec.err)
	})

	t.Run("concurrent run is rejected", func(t *testing.T) {
		evolver := &blockingEvolver{started: make(chan struct{}), release: make(chan struct{})}
		s := New(evolver, nil, nil, nil, nil, nil, newNoopLogger())

		done := make(chan error, 1)
		go func() {
			_, err := s.Migrate(context.Background())
			done <- err
		}()
		<-evolver.started

		_, err := s.Migrate(context.Background())
		assert.ErrorIs(t, err, ErrMigrationInProgress)

		close(evolver.release)
		assert.NoError(t, <-done)
	})
}

func TestService_Grant(t *testing.T) {
	until := time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)
	acc := &models.Account{ExternalID: 5, IsPremium: true, PremiumUntil: &until}

	tests := []struct {
		name        string
		planID      string
		days        int
		setupMocks  func(*MockActivation)
		expectedErr error
	}{
		{
			name:   "by plan",
			planID: "month",
			setupMocks: func(m *MockActivation) {
				m.On("Grant", mock.Anything, int64(5), "month").Return(acc, nil).Once()
			},
		},
		{
			name: "by days",
			days: 3,
			setupMocks: func(m *MockActivation) {
				m.On("Activate", mock.Anything, int64(5), 72*time.Hour).Return(acc, nil).Once()
			},
		},
		{
			name:        "nothing to grant",
			setupMocks:  func(*MockActivation) {},
			expectedErr: ErrInvalidGrant,
		},
		{
			name: "longest grant",
			days: MaxGrantDays,
			setupMocks: func(m *MockActivation) {
				m.On("Activate", mock.Anything, int64(5), time.Duration(MaxGrantDays)*24*time.Hour).Return(acc, nil).Once()
			},
		},
		{
			name:        "too many days",
			days:        MaxGrantDays + 1,
			setupMocks:  func(*MockActivation) {},
			expectedErr: ErrInvalidGrant,
		},
		{
			name:        "days overflowing duration",
			days:        200000,
			setupMocks:  func(*MockActivation) {},
			expectedErr: ErrInvalidGrant,
		},
		{
			name:        "negative days",
			days:        -1,
			setupMocks:  func(*MockActivation) {},
			expectedErr: ErrInvalidGrant,
		},
		{
			name:   "unknown plan",
			planID: "decade",
			setupMocks: func(m *MockActivation) {
				m.On("Grant", mock.Anything, int64(5), "decade").Return(nil, models.ErrUnknownPlan).Once()
			},
			expectedErr: models.ErrUnknownPlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activation := new(MockActivation)
			tt.setupMocks(activation)
			s := New(nil, nil, activation, nil, nil, nil, newNoopLogger())

			got, err := s.Grant(context.Background(), 5, tt.planID, tt.days)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, acc, got)
			}
			activation.AssertExpectations(t)
		})
	}
}

func TestService_Payments(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	_, err := store.GetOrCreate(ctx, 5, models.Profile{}, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	s := New(nil, nil, nil, store, nil, nil, newNoopLogger())

	empty, err := s.Payments(ctx, 5)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, applied, err := store.ApplyPayment(ctx, models.Payment{ExternalID: 5, PlanID: "month", ChargeID: "ch-1", Amount: 100, Currency: "XTR"},
		func(acc *models.Account) error {
			acc.IsPremium = true
			return nil
		})
	require.NoError(t, err)
	require.True(t, applied)

	payments, err := s.Payments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "ch-1", payments[0].ChargeID)
}

func TestService_Broadcast(t *testing.T) {
	b := new(MockBroadcaster)
	b.On("Start", mock.Anything, "hello").Return("job-1").Once()
	s := New(nil, nil, nil, nil, b, nil, newNoopLogger())

	id, err := s.Broadcast(context.Background(), "  hello \n")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)

	_, err = s.Broadcast(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrEmptyBroadcast))
	b.AssertExpectations(t)
}
