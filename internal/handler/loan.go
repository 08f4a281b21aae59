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

type LoanHandler struct {
	loans       *service.LoanService
	validator   *validator.Validate
	maxExponent int
	logger      *slog.Logger
}

func NewLoanHandler(loans *service.LoanService, maxExponent int, logger *slog.Logger) *LoanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanHandler{
		loans:       loans,
		validator:   validator.New(),
		maxExponent: maxExponent,
		logger:      logger,
	}
}

// Register mounts the loan routes on a /tenants/{tenant} subrouter.
func (h *LoanHandler) Register(r *mux.Router) {
	r.HandleFunc("/users/{userId}/offers", h.Offers).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/loans", h.Apply).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/loans", h.ListLoans).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/loans/grant", h.Grant).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/loans/{loanId}/repayments", h.Repay).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/debt", h.Debt).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/forgive", h.Forgive).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/reset", h.ForgiveAndReset).Methods(http.MethodPost)
	r.HandleFunc("/users/{userId}/prefs", h.GetPrefs).Methods(http.MethodGet)
	r.HandleFunc("/users/{userId}/prefs", h.SetPrefs).Methods(http.MethodPut)
	r.HandleFunc("/users/{userId}/credit-score", h.SetCreditScore).Methods(http.MethodPut)
	r.HandleFunc("/loans/{loanId}", h.GetLoan).Methods(http.MethodGet)
	r.HandleFunc("/settings/reminder-channel", h.GetReminderChannel).Methods(http.MethodGet)
	r.HandleFunc("/settings/reminder-channel", h.SetReminderChannel).Methods(http.MethodPut)
}

// Offers lists offers for ?amount=... values, or the tier's default ladder.
func (h *LoanHandler) Offers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var amounts []money.Amount
	for _, raw := range r.URL.Query()["amount"] {
		a, err := service.ParseAmount(raw, false, h.maxExponent)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		amounts = append(amounts, a)
	}

	offers, err := h.loans.Offers(r.Context(), vars["tenant"], vars["userId"], amounts)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, offers)
}

// Apply underwrites and disburses a loan priced by the user's tier.
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.ApplyLoanRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	principal, err := service.ParseAmount(req.Principal, false, h.maxExponent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	loan, err := h.loans.Apply(r.Context(), vars["tenant"], vars["userId"], principal)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, loan)
}

// Grant disburses a loan with explicit terms, skipping underwriting.
func (h *LoanHandler) Grant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.CreateLoanRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	principal, err := service.ParseAmount(req.Principal, false, h.maxExponent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	loan, err := h.loans.CreateAndCredit(r.Context(), vars["tenant"], vars["userId"], principal, req.AprBps, req.TermDays)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Created(w, loan)
}

func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loans, err := h.loans.ListLoans(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if loans == nil {
		loans = []*domain.Loan{}
	}
	response.Success(w, loans)
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	loan, err := h.loans.GetLoan(r.Context(), vars["tenant"], vars["loanId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, loan)
}

// Repay pays a loan from the owner's wallet.
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.PaymentRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	amount, err := service.ParseAmount(req.Amount, false, h.maxExponent)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.loans.Repay(r.Context(), vars["tenant"], vars["userId"], vars["loanId"], amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, result)
}

func (h *LoanHandler) Debt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	debt, err := h.loans.Debt(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, debt)
}

func (h *LoanHandler) Forgive(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	n, err := h.loans.ForgiveAll(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, domain.ForgiveResponse{UserID: vars["userId"], Forgiven: n})
}

// ForgiveAndReset forgives every loan, empties the wallet and resets the
// credit score.
func (h *LoanHandler) ForgiveAndReset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.ForgiveResetRequest
	if err := decodeOptional(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp, err := h.loans.ForgiveAndReset(r.Context(), vars["tenant"], vars["userId"], req.CreditScore)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, resp)
}

func (h *LoanHandler) GetPrefs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	prefs, err := h.loans.GetPrefs(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, prefs)
}

func (h *LoanHandler) SetPrefs(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.PrefsRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	prefs := &domain.UserLoanPrefs{
		UserID:      vars["userId"],
		Remind:      *req.Remind,
		SnoozeUntil: req.SnoozeUntil,
	}
	if err := h.loans.SetPrefs(r.Context(), vars["tenant"], prefs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	stored, err := h.loans.GetPrefs(r.Context(), vars["tenant"], vars["userId"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, stored)
}

func (h *LoanHandler) SetCreditScore(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req domain.CreditScoreRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.loans.SetCreditScore(r.Context(), vars["tenant"], vars["userId"], req.CreditScore); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, req)
}

func (h *LoanHandler) GetReminderChannel(w http.ResponseWriter, r *http.Request) {
	channel, found, err := h.loans.ReminderChannel(r.Context(), mux.Vars(r)["tenant"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !found {
		response.NotFound(w, "No reminder channel configured")
		return
	}
	response.Success(w, domain.ReminderChannelRequest{ChannelID: channel})
}

func (h *LoanHandler) SetReminderChannel(w http.ResponseWriter, r *http.Request) {
	var req domain.ReminderChannelRequest
	if err := decode(w, r, h.validator, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.loans.SetReminderChannel(r.Context(), mux.Vars(r)["tenant"], req.ChannelID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.Success(w, req)
}
