package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDailyTriggerParsing(t *testing.T) {
	_, err := NewDailyTrigger("08:00")
	assert.NoError(t, err)

	_, err = NewDailyTrigger("23:59")
	assert.NoError(t, err)

	_, err = NewDailyTrigger("24:00")
	assert.Error(t, err)

	_, err = NewDailyTrigger("утром")
	assert.Error(t, err)
}

func TestDailyTriggerFiresOncePerDay(t *testing.T) {
	trigger, err := NewDailyTrigger("08:00")
	require.NoError(t, err)

	// Частый опрос сквозь окно срабатывания: с 07:58 до 08:05 каждые 10 секунд
	now := time.Date(2025, 3, 10, 7, 58, 0, 0, time.Local)
	end := time.Date(2025, 3, 10, 8, 5, 0, 0, time.Local)

	fired := 0
	for ; now.Before(end); now = now.Add(10 * time.Second) {
		if trigger.TryFire(now) {
			fired++
		}
	}
	assert.Equal(t, 1, fired, "триггер срабатывает ровно один раз за день")

	// Остаток дня — тишина
	assert.False(t, trigger.TryFire(time.Date(2025, 3, 10, 20, 0, 0, 0, time.Local)))

	// На следующий день срабатывает снова
	assert.True(t, trigger.TryFire(time.Date(2025, 3, 11, 8, 0, 0, 0, time.Local)))
}

func TestDailyTriggerBeforeMark(t *testing.T) {
	trigger, err := NewDailyTrigger("08:00")
	require.NoError(t, err)

	assert.False(t, trigger.TryFire(time.Date(2025, 3, 10, 7, 59, 59, 0, time.Local)))
	assert.True(t, trigger.TryFire(time.Date(2025, 3, 10, 8, 0, 0, 0, time.Local)))
}

func TestDailyTriggerLateStart(t *testing.T) {
	trigger, err := NewDailyTrigger("08:00")
	require.NoError(t, err)

	// Процесс поднялся после настроенного времени: задача выполняется
	// при первой же проверке, но только один раз
	assert.True(t, trigger.TryFire(time.Date(2025, 3, 10, 15, 30, 0, 0, time.Local)))
	assert.False(t, trigger.TryFire(time.Date(2025, 3, 10, 15, 30, 30, 0, time.Local)))
}
