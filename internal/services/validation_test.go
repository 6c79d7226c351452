package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"SleepySmurf/internal/config"
)

func testLimits() config.LimitsConfig {
	return config.LimitsConfig{
		MaxTextLength:   500,
		MinPriority:     0,
		MaxPriority:     5,
		MinDurationDays: 1,
		MaxDurationDays: 7,
	}
}

func TestValidateReminderInput(t *testing.T) {
	limits := testLimits()

	tests := []struct {
		name     string
		text     string
		priority int
		days     int
		wantErr  bool
	}{
		{"валидный ввод", "купить молоко", 3, 2, false},
		{"текст ровно 500 символов", strings.Repeat("а", 500), 3, 2, false},
		{"текст 501 символ", strings.Repeat("а", 501), 3, 2, true},
		{"пустой текст", "", 3, 2, true},
		{"приоритет 5", "текст", 5, 2, false},
		{"приоритет 6", "текст", 6, 2, true},
		{"приоритет -1", "текст", -1, 2, true},
		{"срок 7 дней", "текст", 3, 7, false},
		{"срок 8 дней", "текст", 3, 8, true},
		{"срок 0 дней", "текст", 3, 0, true},
		{"срок 1 день", "текст", 3, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReminderInput(tt.text, tt.priority, tt.days, limits)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, IsValidationError(err), "ожидалась ошибка валидации, получено: %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
