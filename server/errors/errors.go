package errors

import (
	"errors"
	"fmt"
	"net/http"

	"orderly/database"
	"orderly/normalization"
)

// AppError представляет ошибку приложения с HTTP статусом
type AppError struct {
	Code    int    `json:"status_code"` // HTTP статус код
	Message string `json:"message"`     // Сообщение для пользователя
	Err     error  `json:"-"`           // Внутренняя ошибка для логов, не сериализуется
}

// Error реализует интерфейс error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap возвращает вложенную ошибку для errors.Is и errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode возвращает HTTP статус код ошибки
func (e *AppError) StatusCode() int {
	return e.Code
}

// UserMessage возвращает сообщение для пользователя
func (e *AppError) UserMessage() string {
	return e.Message
}

// NewNotFoundError создает ошибку 404 Not Found
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: err}
}

// NewValidationError создает ошибку 400 Bad Request
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// NewInternalError создает ошибку 500 Internal Server Error.
// Пользователь получает общее сообщение, детали только в логах.
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: "Внутренняя ошибка сервера",
		Err:     errors.Join(errors.New(message), err),
	}
}

// FromDomainError сопоставляет ошибки хранилища и движка с HTTP статусами
func FromDomainError(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, database.ErrRecordNotFound):
		return NewNotFoundError(message, err)
	case errors.Is(err, normalization.ErrInputShape),
		errors.Is(err, normalization.ErrConfiguration),
		errors.Is(err, normalization.ErrSeedValidation):
		return NewValidationError(fmt.Sprintf("%s: %v", message, err), err)
	default:
		return NewInternalError(message, err)
	}
}
