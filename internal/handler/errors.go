package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/segyhp/guild-ledger/internal/keylock"
	customErrors "github.com/segyhp/guild-ledger/pkg/errors"
	"github.com/segyhp/guild-ledger/pkg/response"
)

// maxBodyBytes bounds request bodies; every request DTO is tiny.
const maxBodyBytes = 64 << 10

var statusByCode = map[string]int{
	customErrors.ErrCodeValidation:           http.StatusBadRequest,
	customErrors.ErrCodeBadAmount:            http.StatusBadRequest,
	customErrors.ErrCodeInsufficientBalance:  http.StatusConflict,
	customErrors.ErrCodeLoanNotFound:         http.StatusNotFound,
	customErrors.ErrCodeLoanClosed:           http.StatusConflict,
	customErrors.ErrCodeUnderwritingRejected: http.StatusUnprocessableEntity,
	customErrors.ErrCodeDeliveryFailure:      http.StatusBadGateway,
	customErrors.ErrCodeSchemaDrift:          http.StatusInternalServerError,
	customErrors.ErrCodeDatabaseError:        http.StatusInternalServerError,
}

// writeError maps err to an HTTP status and a coded JSON body.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var be *customErrors.BusinessError
	if errors.As(err, &be) {
		status, ok := statusByCode[be.Code]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", be.Code, "error", err)
		}
		response.Coded(w, status, be.Code, be.Message, be.Suggestions)
		return
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, keylock.ErrClosed):
		response.Error(w, http.StatusServiceUnavailable, "Service unavailable, try again", nil)
	default:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.InternalServerError(w, "Internal server error", nil)
	}
}

// decode reads a JSON body into dst and validates it.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return customErrors.WrapValidation("invalid request body: %v", err)
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// decodeOptional is decode for endpoints whose body may be omitted.
func decodeOptional(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decode(w, r, v, dst)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return customErrors.WrapValidation("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return customErrors.WrapValidation("%s", strings.Join(msgs, "; "))
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, customErrors.WrapValidation("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
