package handlers

import (
	"net/http"

	"github.com/caulonghn/club-manager/services"
)

type BalanceHandler struct {
	balanceService  services.BalanceService
	reminderService services.ReminderService
}

func NewBalanceHandler(balanceService services.BalanceService, reminderService services.ReminderService) *BalanceHandler {
	return &BalanceHandler{
		balanceService:  balanceService,
		reminderService: reminderService,
	}
}

func (h *BalanceHandler) GetMemberBalance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "memberID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	balance, err := h.balanceService.GetMemberBalance(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"balance": balance}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *BalanceHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "memberID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.reminderService.SendPaymentReminder(r.Context(), id); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"message": "reminder sent"}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
