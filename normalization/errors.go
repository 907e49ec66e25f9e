package normalization

import (
	"errors"
	"fmt"
)

var (
	// ErrInputShape нарушение контракта входных данных
	ErrInputShape = errors.New("invalid input shape")
	// ErrConfiguration параметр вне допустимой области
	ErrConfiguration = errors.New("invalid configuration")
)

// InputShapeError сущность без наблюдений или с некорректными наблюдениями
type InputShapeError struct {
	EntityID string
	Reason   string
}

func (e *InputShapeError) Error() string {
	return fmt.Sprintf("entity %q: %s", e.EntityID, e.Reason)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrInputShape)
func (e *InputShapeError) Unwrap() error {
	return ErrInputShape
}

// ConfigurationError некорректный параметр движка
type ConfigurationError struct {
	Parameter string
	Value     any
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s=%v: %s", e.Parameter, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// EntityFailure ошибка обработки одной сущности в пакете
type EntityFailure struct {
	EntityID string `json:"entity_id"`
	Err      error  `json:"-"`
	Message  string `json:"message"`
}

func newEntityFailure(entityID string, err error) EntityFailure {
	return EntityFailure{EntityID: entityID, Err: err, Message: err.Error()}
}
