package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SleepySmurf/internal/contracts"
)

// newTestStorage создает хранилище во временной директории с управляемыми часами
func newTestStorage(t *testing.T) (*SQLiteStorage, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	s, err := NewSQLiteStorage(filepath.Join(dir, "test.db"), testLimits(), 30, clock)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, clock
}

func TestAddUserIdempotent(t *testing.T) {
	s, _ := newTestStorage(t)

	require.NoError(t, s.AddUser(100, "smurf", "Иван", "Иванов"))
	require.NoError(t, s.AddUser(100, "smurf2", "Иван", "Петров"))

	ids, err := s.GetAllUsers()
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ids)

	users, err := s.GetUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "smurf2", users[0].Username, "метаданные обновляются при повторной регистрации")
}

func TestAddReminderAssignsMonotonicIDs(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	id1, err := s.AddReminder(100, "первое", 1, 1)
	require.NoError(t, err)
	id2, err := s.AddReminder(100, "второе", 1, 1)
	require.NoError(t, err)

	assert.Greater(t, id2, id1)
}

func TestAddReminderValidationRejectsWithoutMutation(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	_, err := s.AddReminder(100, "", 3, 2)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = s.AddReminder(100, "текст", 6, 2)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	// Отклоненный ввод не выделяет ID: следующее валидное напоминание получает ID 1
	id, err := s.AddReminder(100, "валидное", 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestGetTodayRemindersDayWindow(t *testing.T) {
	s, clock := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	// Срок 1 день: истекает завтра в полдень, сегодня в списке нет
	_, err := s.AddReminder(100, "на завтра", 3, 1)
	require.NoError(t, err)

	// Срок 2 дня: в списке появится только послезавтра
	_, err = s.AddReminder(100, "на послезавтра", 3, 2)
	require.NoError(t, err)

	today, err := s.GetTodayReminders(100)
	require.NoError(t, err)
	assert.Empty(t, today, "в день создания окно еще не достигнуто")

	clock.Advance(24 * time.Hour)
	tomorrow, err := s.GetTodayReminders(100)
	require.NoError(t, err)
	require.Len(t, tomorrow, 1)
	assert.Equal(t, "на завтра", tomorrow[0].Text)
	assert.Equal(t, 3, tomorrow[0].Priority)

	clock.Advance(24 * time.Hour)
	dayAfter, err := s.GetTodayReminders(100)
	require.NoError(t, err)
	require.Len(t, dayAfter, 1)
	assert.Equal(t, "на послезавтра", dayAfter[0].Text)
}

func TestGetTodayRemindersPriorityOrderingStable(t *testing.T) {
	s, clock := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	// Приоритеты в порядке добавления: 2, 5, 0, 5
	texts := []struct {
		text     string
		priority int
	}{
		{"среднее", 2},
		{"срочное первое", 5},
		{"неважное", 0},
		{"срочное второе", 5},
	}
	for _, r := range texts {
		_, err := s.AddReminder(100, r.text, r.priority, 1)
		require.NoError(t, err)
	}

	clock.Advance(24 * time.Hour)
	reminders, err := s.GetTodayReminders(100)
	require.NoError(t, err)
	require.Len(t, reminders, 4)

	priorities := []int{}
	for _, r := range reminders {
		priorities = append(priorities, r.Priority)
	}
	assert.Equal(t, []int{5, 5, 2, 0}, priorities)

	// Равные приоритеты сохраняют порядок добавления
	assert.Equal(t, "срочное первое", reminders[0].Text)
	assert.Equal(t, "срочное второе", reminders[1].Text)
}

func TestDeleteReminderOwnership(t *testing.T) {
	s, _ := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))
	require.NoError(t, s.AddUser(200, "", "", ""))

	id, err := s.AddReminder(100, "мое напоминание", 4, 1)
	require.NoError(t, err)

	// Чужой пользователь не может удалить
	deleted, err := s.DeleteReminder(id, 200, contracts.ReasonUserRequested)
	require.NoError(t, err)
	assert.False(t, deleted)

	// Напоминание осталось активным, в истории чужого пусто
	history, err := s.GetDeletedReminders(200, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Владелец удаляет успешно
	deleted, err = s.DeleteReminder(id, 100, contracts.ReasonUserRequested)
	require.NoError(t, err)
	assert.True(t, deleted)

	// Повторное удаление — no-op
	deleted, err = s.DeleteReminder(id, 100, contracts.ReasonUserRequested)
	require.NoError(t, err)
	assert.False(t, deleted)

	history, err = s.GetDeletedReminders(100, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].OriginalID)
	assert.Equal(t, "мое напоминание", history[0].Text)
	assert.Equal(t, 4, history[0].Priority)
	assert.Equal(t, contracts.ReasonUserRequested, history[0].Reason)
}

func TestDeleteOldRemindersExpirySweep(t *testing.T) {
	s, clock := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	id, err := s.AddReminder(100, "просрочится", 2, 1)
	require.NoError(t, err)
	_, err = s.AddReminder(100, "еще живое", 2, 7)
	require.NoError(t, err)

	// Через двое суток первое напоминание просрочено, второе нет
	clock.Advance(48 * time.Hour)
	require.NoError(t, s.DeleteOldReminders())

	history, err := s.GetDeletedReminders(100, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].OriginalID)
	assert.Equal(t, contracts.ReasonExpired, history[0].Reason)

	// Идемпотентность: повторный запуск без сдвига времени не плодит дубликатов
	require.NoError(t, s.DeleteOldReminders())
	history, err = s.GetDeletedReminders(100, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestDeleteOldRemindersRetentionBoundary(t *testing.T) {
	s, clock := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	// Первая запись в архиве: deleted_at = T0
	id1, err := s.AddReminder(100, "старая запись", 1, 1)
	require.NoError(t, err)
	deleted, err := s.DeleteReminder(id1, 100, contracts.ReasonUserRequested)
	require.NoError(t, err)
	require.True(t, deleted)

	// Вторая запись: deleted_at = T0 + 2 дня
	clock.Advance(48 * time.Hour)
	id2, err := s.AddReminder(100, "свежая запись", 1, 1)
	require.NoError(t, err)
	deleted, err = s.DeleteReminder(id2, 100, contracts.ReasonUserRequested)
	require.NoError(t, err)
	require.True(t, deleted)

	// Теперь T0 + 31 день: первой записи 31 день (чистится),
	// второй — 29 дней (остается)
	clock.Advance(29 * 24 * time.Hour)
	require.NoError(t, s.DeleteOldReminders())

	history, err := s.GetDeletedReminders(100, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "свежая запись", history[0].Text)
}

func TestGetDeletedRemindersOrderAndLimit(t *testing.T) {
	s, clock := newTestStorage(t)
	require.NoError(t, s.AddUser(100, "", "", ""))

	for i := 0; i < 12; i++ {
		id, err := s.AddReminder(100, "запись", 1, 1)
		require.NoError(t, err)
		deleted, err := s.DeleteReminder(id, 100, contracts.ReasonUserRequested)
		require.NoError(t, err)
		require.True(t, deleted)
		clock.Advance(time.Minute)
	}

	history, err := s.GetDeletedReminders(100, 10)
	require.NoError(t, err)
	require.Len(t, history, 10, "история усечена до limit")

	// Сначала самые свежие
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].DeletedAt.After(history[i-1].DeletedAt))
	}
}
