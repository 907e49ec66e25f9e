package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HTTPError интерфейс для ошибок с HTTP статусом и сообщением.
// Объявлен здесь, чтобы middleware не зависел от пакета server/errors.
type HTTPError interface {
	error
	StatusCode() int
	UserMessage() string
	Unwrap() error
}

// GinErrorMiddleware превращает последнюю ошибку из c.Errors в JSON-ответ
// вида {"error": true, "message": ...}, если обработчик сам ничего не записал
func GinErrorMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		message := "Внутренняя ошибка сервера"
		var httpErr HTTPError
		if errors.As(last.Err, &httpErr) {
			status = httpErr.StatusCode()
			message = httpErr.UserMessage()
		}

		if status >= http.StatusInternalServerError {
			logger.Error("HTTP error",
				"error", last.Err,
				"status_code", status,
				"request_id", GetRequestIDFromGin(c),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}

		c.JSON(status, gin.H{
			"error":      true,
			"message":    message,
			"request_id": GetRequestIDFromGin(c),
		})
	}
}
