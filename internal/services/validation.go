package services

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"SleepySmurf/internal/config"
)

// ValidationError означает, что введенные данные напоминания не прошли
// проверку границ. Операция отклонена до любой записи в хранилище.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("неверное значение поля %s: %s", e.Field, e.Message)
}

// IsValidationError проверяет, является ли ошибка ошибкой валидации
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateReminderInput проверяет текст, приоритет и срок напоминания
// против настроенных границ. Вызывается до выделения ID и записи.
func ValidateReminderInput(text string, priority, days int, limits config.LimitsConfig) error {
	length := utf8.RuneCountInString(text)
	if length == 0 {
		return &ValidationError{Field: "text", Message: "текст не может быть пустым"}
	}
	if length > limits.MaxTextLength {
		return &ValidationError{
			Field:   "text",
			Message: fmt.Sprintf("текст длиннее %d символов", limits.MaxTextLength),
		}
	}
	if priority < limits.MinPriority || priority > limits.MaxPriority {
		return &ValidationError{
			Field:   "priority",
			Message: fmt.Sprintf("приоритет должен быть от %d до %d", limits.MinPriority, limits.MaxPriority),
		}
	}
	if days < limits.MinDurationDays || days > limits.MaxDurationDays {
		return &ValidationError{
			Field:   "days",
			Message: fmt.Sprintf("срок должен быть от %d до %d дней", limits.MinDurationDays, limits.MaxDurationDays),
		}
	}
	return nil
}
