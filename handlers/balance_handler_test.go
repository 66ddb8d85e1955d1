package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caulonghn/club-manager/models"
	"github.com/caulonghn/club-manager/services"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBalanceService struct {
	GetMemberBalanceFunc func(ctx context.Context, memberID int) (*services.MemberBalance, error)
}

func (f *fakeBalanceService) GetMemberBalance(ctx context.Context, memberID int) (*services.MemberBalance, error) {
	return f.GetMemberBalanceFunc(ctx, memberID)
}

type fakeReminderService struct {
	SendPaymentReminderFunc func(ctx context.Context, memberID int) error
}

func (f *fakeReminderService) SendPaymentReminder(ctx context.Context, memberID int) error {
	return f.SendPaymentReminderFunc(ctx, memberID)
}

func balanceRouter(balanceSvc services.BalanceService, reminderSvc services.ReminderService) *chi.Mux {
	h := NewBalanceHandler(balanceSvc, reminderSvc)
	r := chi.NewRouter()
	r.Get("/members/{memberID}/balance", h.GetMemberBalance)
	r.Post("/members/{memberID}/remind", h.SendReminder)
	return r
}

func TestBalanceHandlerGet(t *testing.T) {
	balanceSvc := &fakeBalanceService{
		GetMemberBalanceFunc: func(ctx context.Context, memberID int) (*services.MemberBalance, error) {
			return &services.MemberBalance{
				Member: &models.Member{ID: memberID, Name: "Minh"},
				Total:  109000,
				QRURL:  "https://img.vietqr.io/image/970436-0123456789-compact2.png?amount=109000",
			}, nil
		},
	}
	router := balanceRouter(balanceSvc, &fakeReminderService{})

	req := httptest.NewRequest(http.MethodGet, "/members/2/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Balance services.MemberBalance `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(109000), resp.Balance.Total)
	assert.Contains(t, resp.Balance.QRURL, "amount=109000")
}

func TestBalanceHandlerMemberNotFound(t *testing.T) {
	balanceSvc := &fakeBalanceService{
		GetMemberBalanceFunc: func(ctx context.Context, memberID int) (*services.MemberBalance, error) {
			return nil, services.ErrMemberNotFound
		},
	}
	router := balanceRouter(balanceSvc, &fakeReminderService{})

	req := httptest.NewRequest(http.MethodGet, "/members/404/balance", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBalanceHandlerSendReminder(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		var gotMemberID int
		reminderSvc := &fakeReminderService{
			SendPaymentReminderFunc: func(ctx context.Context, memberID int) error {
				gotMemberID = memberID
				return nil
			},
		}
		router := balanceRouter(&fakeBalanceService{}, reminderSvc)

		req := httptest.NewRequest(http.MethodPost, "/members/2/remind", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, gotMemberID)
	})

	t.Run("smtp not configured", func(t *testing.T) {
		reminderSvc := &fakeReminderService{
			SendPaymentReminderFunc: func(ctx context.Context, memberID int) error {
				return services.ErrReminderUnavailable
			},
		}
		router := balanceRouter(&fakeBalanceService{}, reminderSvc)

		req := httptest.NewRequest(http.MethodPost, "/members/2/remind", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
