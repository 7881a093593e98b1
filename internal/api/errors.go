package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/pf-mines/internal/games"
	"github.com/MJE43/pf-mines/internal/ledger"
	"github.com/MJE43/pf-mines/internal/play"
	"github.com/MJE43/pf-mines/internal/scan"
	"github.com/MJE43/pf-mines/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error in the context
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	var ctx map[string]any
	if len(eb.context) > 0 {
		ctx = eb.context
	}
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// classify maps a domain error onto a status code and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, games.ErrInvalidGridSize),
		errors.Is(err, games.ErrInvalidMineCount),
		errors.Is(err, scan.ErrInvalidRange),
		errors.Is(err, scan.ErrRangeTooLarge),
		errors.Is(err, scan.ErrLimitTooLarge),
		errors.Is(err, scan.ErrUnknownMetric),
		errors.Is(err, scan.ErrUnknownOp),
		errors.Is(err, scan.ErrInvalidPicks):
		return http.StatusBadRequest, ErrTypeValidation
	case errors.Is(err, games.ErrGameOver):
		return http.StatusBadRequest, ErrTypeGameOver
	case errors.Is(err, games.ErrInvalidPosition), errors.Is(err, games.ErrAlreadyRevealed):
		return http.StatusBadRequest, ErrTypeInvalidMove
	case errors.Is(err, play.ErrNotFound), errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound, ErrTypeGameNotFound
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeRunNotFound
	case errors.Is(err, ledger.ErrDisabled):
		return http.StatusServiceUnavailable, ErrTypeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// publicMessage is what the client sees. Internal failures are not echoed.
func publicMessage(err error, status int) string {
	switch {
	case errors.Is(err, play.ErrNotFound):
		return "Game not found"
	case errors.Is(err, ledger.ErrNotFound):
		return "Game not found in ledger"
	case errors.Is(err, ledger.ErrDisabled):
		return "Ledger not available"
	case status >= http.StatusInternalServerError:
		return "Internal server error"
	default:
		return err.Error()
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError classifies err and writes the matching response.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.write(w, r, http.StatusBadRequest, engineErr)
		return
	}

	status, errType := classify(err)
	b := NewError(errType, publicMessage(err, status)).
		WithRequestID(middleware.GetReqID(r.Context()))
	if status >= http.StatusInternalServerError {
		b.WithCause(err)
	}
	eh.write(w, r, status, b.Build())
}

// HandleValidationError reports a malformed or incomplete request body.
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, message string) {
	engineErr := NewError(ErrTypeValidation, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		Build()
	eh.write(w, r, http.StatusBadRequest, engineErr)
}

func (eh *ErrorHandler) write(w http.ResponseWriter, r *http.Request, status int, engineErr EngineError) {
	if engineErr.RequestID == "" {
		engineErr.RequestID = middleware.GetReqID(r.Context())
	}
	eh.logError(r, engineErr, status)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(engineErr); err != nil {
		eh.logger.Error("failed to encode error response", "error", err)
	}
}

// logError logs usage errors at warn and server errors at error. It never
// logs request bodies, so seeds cannot leak through it.
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	kv := []any{
		"type", engineErr.Type,
		"category", GetErrorCategory(engineErr.Type),
		"status", status,
		"request_id", engineErr.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if cause, ok := engineErr.Context["cause"]; ok {
		kv = append(kv, "cause", cause)
	}
	if status >= http.StatusInternalServerError {
		eh.logger.Error(engineErr.Message, kv...)
		return
	}
	eh.logger.Warn(engineErr.Message, kv...)
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic recovered", "request_id", requestID, "path", r.URL.Path, "panic", fmt.Sprint(rvr))

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					Build()
				eh.write(w, r, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
