package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/initdaemon/internal/coordinator"
	"github.com/shaiso/initdaemon/internal/directory"
	"github.com/shaiso/initdaemon/internal/domain"
	"github.com/shaiso/initdaemon/internal/health"
	"github.com/shaiso/initdaemon/internal/pipeline"
	"github.com/shaiso/initdaemon/internal/store"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInvalidState   ErrorCode = "INVALID_TRANSITION"
	ErrCodeMalformedEvent ErrorCode = "MALFORMED_EVENT"
	ErrCodeInconsistent   ErrorCode = "CONSISTENCY_ERROR"
	ErrCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Text отправляет ответ text/plain.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, message string) {
	Error(w, http.StatusConflict, ErrCodeConflict, message)
}

// InvalidState отправляет ошибку 422.
func InvalidState(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnprocessableEntity, ErrCodeInvalidState, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleError преобразует ошибку операции в HTTP ответ.
// Возвращает false для nil.
func HandleError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	var (
		notFound   *directory.NotFoundError
		validation *pipeline.ValidationError
		transition *domain.TransitionError
	)

	switch {
	case errors.Is(err, coordinator.ErrStepRequired):
		BadRequest(w, "Step query parameter is required")
	case errors.As(err, &notFound):
		NotFound(w, notFound.Error())
	case errors.As(err, &validation), errors.Is(err, pipeline.ErrParse):
		BadRequest(w, err.Error())
	case errors.Is(err, health.ErrMalformedEvent):
		Error(w, http.StatusBadRequest, ErrCodeMalformedEvent, err.Error())
	case errors.Is(err, coordinator.ErrStepExists):
		Conflict(w, err.Error())
	case errors.As(err, &transition):
		InvalidState(w, transition.Error())
	case errors.Is(err, store.ErrConsistency):
		logger.Error("store consistency violated", "error", err)
		Error(w, http.StatusInternalServerError, ErrCodeInconsistent, err.Error())
	default:
		InternalError(w, logger, err)
	}
	return true
}
