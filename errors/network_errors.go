package errors

import (
	"net/http"

	"github.com/mezonai/starnotary/jsonx"
)

// NetworkErrorCode represents standardized error codes for network operations
type NetworkErrorCode string

const (
	// General errors
	ErrCodeInternal NetworkErrorCode = "internal_error"

	// Validation errors
	ErrCodeInvalidRequest   NetworkErrorCode = "invalid_request"
	ErrCodeInvalidSignature NetworkErrorCode = "invalid_signature"
	ErrCodeInvalidAddress   NetworkErrorCode = "invalid_address"
	ErrCodeInvalidStar      NetworkErrorCode = "invalid_star"

	// Business logic errors
	ErrCodeBlockNotFound    NetworkErrorCode = "block_not_found"
	ErrCodeAlreadyPending   NetworkErrorCode = "already_pending"
	ErrCodeNoPendingRequest NetworkErrorCode = "no_pending_request"
	ErrCodeNotAuthorized    NetworkErrorCode = "not_authorized"

	// System errors
	ErrCodeStoreUnavailable NetworkErrorCode = "store_unavailable"
	ErrCodeRateLimited      NetworkErrorCode = "rate_limited"
)

// NetworkError represents a standardized network error
type NetworkError struct {
	Code    NetworkErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	err, _ := jsonx.Marshal(NetworkError{
		Code:    e.Code,
		Message: e.Message,
	})
	return string(err)
}

// HTTPStatus maps the code to the status the REST layer answers with.
func (e *NetworkError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeInvalidRequest, ErrCodeInvalidSignature, ErrCodeInvalidAddress, ErrCodeInvalidStar:
		return http.StatusBadRequest
	case ErrCodeBlockNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyPending:
		return http.StatusConflict
	case ErrCodeNoPendingRequest, ErrCodeNotAuthorized:
		return http.StatusForbidden
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error message constants - user-friendly and concise
const (
	ErrMsgInvalidRequest     = "Request format is invalid"
	ErrMsgInvalidSignature   = "Message signature is invalid"
	ErrMsgInvalidAddress     = "Wallet address is invalid"
	ErrMsgBlockNotFound      = "Block could not be found"
	ErrMsgAlreadyPending     = "A validation request already exists for this address, wait for it to time out"
	ErrMsgNoPendingRequest   = "No pending validation request for this address"
	ErrMsgNotAuthorized      = "Address has not validated its signature or the validation window elapsed"
	ErrMsgStoreUnavailable   = "Ledger storage is unavailable, please try again"
	ErrMsgInternal           = "Server error, please try again"
	ErrMsgRateLimited        = "Too many requests, please slow down"
	ErrMsgMissingField       = "Field '%s' is required"
	ErrMsgShortTextTooLong   = "Short text length exceeds maximum (%d) for field '%s'"
	ErrMsgStoryTooLong       = "Story exceeds maximum size (%d bytes)"
	ErrMsgInvalidCharacters  = "Field '%s' contains invalid characters"
	ErrMsgInvalidBlockHeight = "Block height must be a non-negative integer"
)

// NewError creates a new NetworkError and returns it as error interface
func NewError(code NetworkErrorCode, message string) error {
	return &NetworkError{
		Code:    code,
		Message: message,
	}
}
