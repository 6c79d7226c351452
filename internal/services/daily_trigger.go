package services

import (
	"fmt"
	"sync"
	"time"
)

// DailyTrigger решает, пора ли выполнять ежедневную задачу. Срабатывает
// не более одного раза в календарный день после наступления настроенного
// времени, независимо от частоты опроса: запоминается дата последнего
// срабатывания, а не совпадение минут.
type DailyTrigger struct {
	hour   int
	minute int

	mu        sync.Mutex
	lastFired time.Time // начало дня последнего срабатывания
}

// NewDailyTrigger создает триггер на время в формате HH:MM
func NewDailyTrigger(timeOfDay string) (*DailyTrigger, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(timeOfDay, "%d:%d", &hour, &minute); err != nil {
		return nil, fmt.Errorf("неверный формат времени %q, ожидается HH:MM: %w", timeOfDay, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("время %q вне допустимого диапазона", timeOfDay)
	}
	return &DailyTrigger{hour: hour, minute: minute}, nil
}

// TryFire возвращает true, если задачу пора выполнить, и фиксирует
// срабатывание за текущий день. Повторные вызовы в тот же день
// возвращают false.
func (t *DailyTrigger) TryFire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if t.lastFired.Equal(dayStart) {
		return false
	}

	mark := dayStart.Add(time.Duration(t.hour)*time.Hour + time.Duration(t.minute)*time.Minute)
	if now.Before(mark) {
		return false
	}

	t.lastFired = dayStart
	return true
}
