package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/segyhp/guild-ledger/internal/domain"
	"github.com/segyhp/guild-ledger/internal/money"
	"github.com/segyhp/guild-ledger/internal/service"
	"github.com/segyhp/guild-ledger/pkg/response"
)

// LedgerHandler serves wallet balances, adjustments and transfers.
type LedgerHandler struct {
	wallet      *service.WalletService
	validator   *validator.Validate
	maxExponent int
	logger      *slog.Logger
}

func NewLedgerHandler(wallet *service.WalletService, maxExponent int, logger *slog.Logger) *LedgerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandler{
		wallet:      wallet,
		validator:   validator.New(),
		maxExponent: maxExponent,
		logger:      logger,
	}
}

// Register mounts the ledger routes on a /tenants/{tenant} subrouter.
func (h *LedgerHandler) Register(r *mux.Router) {
	r.HandleFunc("/users/{userId}/balance", h.GetBalance).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/adjustments", h.Adjust).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/transactions", h.History).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/reconcile", h.Reconcile).Methods(http.MethodGet)
	r.HandleFunc("/transfers", h.Transfer).Methods(http.MethodPost)
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	balance, err := h.wallet.GetBalance(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, balanceResponse(vars["userId"], balance))
}

// Adjust applies a signed delta such as "-2.5k".
func (h *LedgerHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.AdjustRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	delta, err := service.ParseAmount(req.Delta, true, h.maxExponent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	balance, err := h.wallet.AdjustBalance(r.Context(), vars["tenant"], vars["userId"], delta, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, balanceResponse(vars["userId"], balance))
}

func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	amount, err := service.ParseAmount(req.Amount, false, h.maxExponent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.wallet.Transfer(r.Context(), mux.Vars(r)["tenant"], req.From, req.To, amount, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, result)
}

func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	limit, err := queryInt(r, "limit", service.DefaultHistoryLimit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	txns, err := h.wallet.History(r.Context(), vars["tenant"], vars["userId"], limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if txns == nil {
		txns = []*domain.Transaction{}
	}
	response.Success(w, txns)
}

func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	rec, err := h.wallet.Reconcile(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"reconciliation": rec,
		"consistent":     rec.Consistent(),
	})
}

func balanceResponse(userID string, balance money.Amount) domain.BalanceResponse {
	return domain.BalanceResponse{
		UserID:  userID,
		Balance: balance,
		Display: money.FormatHuman(balance),
	}
}
