package common

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"smad-api/logger"

	"github.com/sirupsen/logrus"
)

const (
	CodeInternal          = "INTERNAL_SERVER_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN_OPERATION"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeNoToken           = "NO_TOKEN_FOUND"
	CodeTokenSignature    = "INVALID_TOKEN_SIGNATURE"
	CodeResourceNotFound  = "RESOURCE_NOT_FOUND"
	defaultMessage        = "An unknown server error occured while processing request"
	defaultUnauthorizeMsg = "Unauthorized"
)

// Kind tags an AppError with the family it belongs to.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbiddenOperation
	KindTokenExpired
	KindNoToken
	KindTokenSignature
	KindNotFoundResource
)

type kindDefaults struct {
	status  int
	code    string
	message string
}

// defaults returns the fixed status, code and message of a kind.
// KindGeneric has no fixed values beyond the defaults.
func (k Kind) defaults() kindDefaults {
	switch k {
	case KindNotFound:
		return kindDefaults{http.StatusNotFound, CodeNotFound, http.StatusText(http.StatusNotFound)}
	case KindUnauthorized:
		return kindDefaults{http.StatusUnauthorized, CodeUnauthorized, defaultUnauthorizeMsg}
	case KindForbiddenOperation:
		return kindDefaults{http.StatusForbidden, CodeForbidden, http.StatusText(http.StatusForbidden)}
	case KindTokenExpired:
		return kindDefaults{http.StatusUnauthorized, CodeTokenExpired, "Jwt token has expired"}
	case KindNoToken:
		return kindDefaults{http.StatusUnauthorized, CodeNoToken, "No Jwt token found in authorization header"}
	case KindTokenSignature:
		return kindDefaults{http.StatusUnauthorized, CodeTokenSignature, "Jwt token signature is invalid"}
	case KindNotFoundResource:
		return kindDefaults{http.StatusNotFound, CodeResourceNotFound, http.StatusText(http.StatusNotFound)}
	default:
		return kindDefaults{http.StatusInternalServerError, CodeInternal, defaultMessage}
	}
}

// AppError is the only error type that reaches clients.
type AppError struct {
	Kind       Kind   `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func build(kind Kind, code, message string, status int, err error) *AppError {
	s := kind.defaults()
	if code == "" {
		code = s.code
	}
	if message == "" {
		message = s.message
	}
	if status == 0 {
		status = s.status
	}
	appErr := &AppError{Kind: kind, Code: code, Message: message, StatusCode: status, Err: err}
	appErr.log()
	return appErr
}

func (e *AppError) log() {
	entry := logger.Log.WithFields(logrus.Fields{
		"code":        e.Code,
		"status_code": e.StatusCode,
	})
	if e.Err != nil {
		entry = entry.WithField("internal_error", e.Err.Error())
	}
	entry.Error("ApiError: " + e.Message)
}

// NewAppError returns the default internal server error.
func NewAppError() *AppError {
	return build(KindGeneric, "", "", 0, nil)
}

// FromMessage returns an internal server error with a custom message.
func FromMessage(message string) *AppError {
	return build(KindGeneric, "", message, 0, nil)
}

// FromCode returns a 500 error with a custom code and message.
func FromCode(code, message string) *AppError {
	return build(KindGeneric, code, message, 0, nil)
}

// WithStatus returns an error with an explicit code, message and status.
func WithStatus(code, message string, status int) *AppError {
	return build(KindGeneric, code, message, status, nil)
}

// Wrap converts any error into an AppError. An AppError found in the chain is
// copied as is (code, message and status) without being logged again; any
// other error becomes an internal server error carrying the original message.
func Wrap(err error) *AppError {
	if err == nil {
		return NewAppError()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return &AppError{
			Kind:       appErr.Kind,
			Code:       appErr.Code,
			Message:    appErr.Message,
			StatusCode: appErr.StatusCode,
			Err:        appErr.Err,
		}
	}
	return build(KindGeneric, "", err.Error(), 0, err)
}

func NotFound() *AppError {
	return build(KindNotFound, "", "", 0, nil)
}

// Unauthorized returns the generic 401 error.
func Unauthorized() *AppError {
	return build(KindUnauthorized, "", "", 0, nil)
}

// UnauthorizedWith returns a 401 error with a specific code and message.
func UnauthorizedWith(code, message string) *AppError {
	return build(KindUnauthorized, code, message, 0, nil)
}

func ForbiddenOperation() *AppError {
	return build(KindForbiddenOperation, "", "", 0, nil)
}

func TokenExpired() *AppError {
	return build(KindTokenExpired, "", "", 0, nil)
}

func NoToken() *AppError {
	return build(KindNoToken, "", "", 0, nil)
}

func TokenSignature() *AppError {
	return build(KindTokenSignature, "", "", 0, nil)
}

func NotFoundResource(message string) *AppError {
	return build(KindNotFoundResource, "", message, 0, nil)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ReqID   string `json:"reqId"`
}

// Send writes the error as {code, message, reqId} with its status code.
func (e *AppError) Send(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(errorBody{
		Code:    e.Code,
		Message: e.Message,
		ReqID:   RequestIDFromContext(r.Context()),
	})
}

// Handle sends err, wrapping it first when it is not an AppError.
func Handle(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := err.(*AppError); ok {
		appErr.Send(w, r)
		return
	}
	Wrap(err).Send(w, r)
}

type requestIDKey struct{}

// ContextWithRequestID stores the request correlation id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request correlation id, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
