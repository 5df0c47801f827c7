package read

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sergeycommit/ai-tg-bot/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Account(ctx context.Context, externalID int64) (*models.Account, error) {
	args := m.Called(ctx, externalID)
	if res := args.Get(0); res != nil {
		return res.(*models.Account), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) Payments(ctx context.Context, externalID int64) ([]*models.Payment, error) {
	args := m.Called(ctx, externalID)
	if res := args.Get(0); res != nil {
		return res.([]*models.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestReadHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "existing account",
			url:  "/accounts/42",
			setupMock: func(m *MockService) {
				m.On("Account", mock.Anything, int64(42)).Return(&models.Account{ExternalID: 42, RequestsToday: 3}, nil)
				m.On("Payments", mock.Anything, int64(42)).Return([]*models.Payment{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"requests_today":3`,
		},
		{
			name: "account with payments",
			url:  "/accounts/43",
			setupMock: func(m *MockService) {
				m.On("Account", mock.Anything, int64(43)).Return(&models.Account{ExternalID: 43}, nil)
				m.On("Payments", mock.Anything, int64(43)).Return([]*models.Payment{
					{ID: 1, ExternalID: 43, PlanID: "month", ChargeID: "ch-1", Amount: 100, Currency: "XTR"},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"charge_id":"ch-1"`,
		},
		{
			name: "payments error",
			url:  "/accounts/44",
			setupMock: func(m *MockService) {
				m.On("Account", mock.Anything, int64(44)).Return(&models.Account{ExternalID: 44}, nil)
				m.On("Payments", mock.Anything, int64(44)).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not read payments"}`,
		},
		{
			name:           "invalid id",
			url:            "/accounts/abc",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"status":"Error","error":"invalid account id"}`,
		},
		{
			name: "unknown account",
			url:  "/accounts/7",
			setupMock: func(m *MockService) {
				m.On("Account", mock.Anything, int64(7)).Return(nil, models.ErrAccountNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"status":"Error","error":"account not found"}`,
		},
		{
			name: "storage error",
			url:  "/accounts/8",
			setupMock: func(m *MockService) {
				m.On("Account", mock.Anything, int64(8)).Return(nil, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `{"status":"Error","error":"could not read account"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			r := chi.NewRouter()
			r.Method(http.MethodGet, "/accounts/{id}", New(logger, mockService))

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
