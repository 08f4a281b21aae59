package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors
var (
	ErrValidation           = errors.New("validation failed")
	ErrBadAmount            = errors.New("malformed amount")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrLoanClosed           = errors.New("loan is closed")
	ErrSchemaDrift          = errors.New("storage schema drift")
	ErrDeliveryFailure      = errors.New("reminder delivery failed")
	ErrUnderwritingRejected = errors.New("loan application rejected")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code        string
	Message     string
	Suggestions []string
	Err         error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeBadAmount            = "BAD_AMOUNT"
	ErrCodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	ErrCodeLoanNotFound         = "LOAN_NOT_FOUND"
	ErrCodeLoanClosed           = "LOAN_CLOSED"
	ErrCodeSchemaDrift          = "SCHEMA_DRIFT"
	ErrCodeDeliveryFailure      = "DELIVERY_FAILURE"
	ErrCodeUnderwritingRejected = "UNDERWRITING_REJECTED"
	ErrCodeDatabaseError        = "DATABASE_ERROR"
)

// Code returns the business code carried by err, or "" if there is none.
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapValidation(format string, args ...interface{}) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		fmt.Sprintf(format, args...),
		ErrValidation,
	)
}

func WrapBadAmount(input string, cause error, suggestions []string) *BusinessError {
	msg := fmt.Sprintf("Amount %q could not be parsed", input)
	if len(suggestions) > 0 {
		msg += "; did you mean " + strings.Join(suggestions, ", ") + "?"
	}
	be := NewBusinessError(ErrCodeBadAmount, msg, errors.Join(ErrBadAmount, cause))
	be.Suggestions = suggestions
	return be
}

func WrapInsufficientBalance(userID, balance, requested string) *BusinessError {
	return NewBusinessError(
		ErrCodeInsufficientBalance,
		fmt.Sprintf("User %s has %s, cannot apply %s", userID, balance, requested),
		ErrInsufficientBalance,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanClosed(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanClosed,
		fmt.Sprintf("Loan with ID %s is already %s", loanID, status),
		ErrLoanClosed,
	)
}

func WrapSchemaDrift(tenant string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeSchemaDrift,
		fmt.Sprintf("Storage for tenant %s is missing expected tables or columns", tenant),
		errors.Join(ErrSchemaDrift, err),
	)
}

func WrapDeliveryFailure(loanID string, err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDeliveryFailure,
		fmt.Sprintf("Reminder for loan %s could not be delivered", loanID),
		errors.Join(ErrDeliveryFailure, err),
	)
}

func WrapUnderwritingRejected(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnderwritingRejected,
		reason,
		ErrUnderwritingRejected,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}
