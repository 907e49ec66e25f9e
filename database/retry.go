package database

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const (
	// DefaultRetryAttempts количество попыток повтора по умолчанию
	DefaultRetryAttempts = 3
	// DefaultRetryDelay задержка между попытками по умолчанию
	DefaultRetryDelay = 50 * time.Millisecond
	// MaxRetryDelay максимальная задержка между попытками
	MaxRetryDelay = time.Second
)

// RetryConfig конфигурация для retry логики
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig возвращает конфигурацию retry по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultRetryAttempts,
		InitialDelay: DefaultRetryDelay,
		MaxDelay:     MaxRetryDelay,
		Multiplier:   2.0,
	}
}

// IsRetryableError сообщает, что SQLite занят другой транзакцией и операцию можно повторить
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withRetry выполняет fn, повторяя ее при блокировке базы с экспоненциальной задержкой
func withRetry(ctx context.Context, config RetryConfig, operation string, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Printf("[CurationDB] %s succeeded after %d attempts", operation, attempt)
			}
			return nil
		}
		lastErr = err

		if !IsRetryableError(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		log.Printf("[CurationDB] %s failed (attempt %d/%d), retrying in %v: %v",
			operation, attempt, config.MaxAttempts, delay, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return lastErr
}
