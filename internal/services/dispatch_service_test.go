package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"SleepySmurf/internal/contracts"
)

// fakeDispatchStorage — хранилище-заглушка для тестов рассылки: отдает
// заранее заданные списки и ошибки без настоящей базы
type fakeDispatchStorage struct {
	contracts.Storage

	users     []int64
	usersErr  error
	reminders map[int64][]contracts.Reminder
	readErrs  map[int64]error
}

func (f *fakeDispatchStorage) GetAllUsers() ([]int64, error) {
	return f.users, f.usersErr
}

func (f *fakeDispatchStorage) GetTodayReminders(userID int64) ([]contracts.Reminder, error) {
	if err, ok := f.readErrs[userID]; ok {
		return nil, err
	}
	return f.reminders[userID], nil
}

// fakeSender фиксирует доставленные сообщения и отказывает указанным
// получателям
type fakeSender struct {
	sent    map[int64]string
	failFor map[int64]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[int64]string), failFor: make(map[int64]error)}
}

func (f *fakeSender) SendMessage(chatID int64, message string) error {
	if err, ok := f.failFor[chatID]; ok {
		return err
	}
	f.sent[chatID] = message
	return nil
}

func newTestDispatch(storage contracts.Storage, sender contracts.TelegramMessageSender) *DispatchService {
	trigger, _ := NewDailyTrigger("08:00")
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	return NewDispatchService(storage, sender, trigger, 10*time.Second, clock)
}

func TestDispatchOnceDeliversDigests(t *testing.T) {
	storage := &fakeDispatchStorage{
		users: []int64{100, 200},
		reminders: map[int64][]contracts.Reminder{
			100: {
				{ID: 1, UserID: 100, Text: "позвонить маме", Priority: 5},
				{ID: 2, UserID: 100, Text: "полить цветы", Priority: 1},
			},
			200: {
				{ID: 3, UserID: 200, Text: "сдать отчет", Priority: 3},
			},
		},
	}
	sender := newFakeSender()

	err := newTestDispatch(storage, sender).DispatchOnce()
	require.NoError(t, err)

	require.Contains(t, sender.sent, int64(100))
	require.Contains(t, sender.sent, int64(200))
	assert.Contains(t, sender.sent[100], "1. [приоритет 5] позвонить маме")
	assert.Contains(t, sender.sent[100], "2. [приоритет 1] полить цветы")
	assert.Contains(t, sender.sent[200], "сдать отчет")
}

func TestDispatchOnceSkipsEmptyLists(t *testing.T) {
	storage := &fakeDispatchStorage{
		users: []int64{100, 200},
		reminders: map[int64][]contracts.Reminder{
			200: {{ID: 1, UserID: 200, Text: "купить хлеб", Priority: 0}},
		},
	}
	sender := newFakeSender()

	err := newTestDispatch(storage, sender).DispatchOnce()
	require.NoError(t, err)

	assert.NotContains(t, sender.sent, int64(100), "пустой список не рассылается")
	assert.Contains(t, sender.sent, int64(200))
}

func TestDispatchOnceIsolatesFailedRecipient(t *testing.T) {
	storage := &fakeDispatchStorage{
		users: []int64{100, 200, 300},
		reminders: map[int64][]contracts.Reminder{
			100: {{ID: 1, UserID: 100, Text: "а", Priority: 0}},
			200: {{ID: 2, UserID: 200, Text: "б", Priority: 0}},
			300: {{ID: 3, UserID: 300, Text: "в", Priority: 0}},
		},
	}
	sender := newFakeSender()
	sender.failFor[200] = fmt.Errorf("пользователь заблокировал бота")

	err := newTestDispatch(storage, sender).DispatchOnce()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)

	// Сбой на втором получателе не помешал первому и третьему
	assert.Contains(t, sender.sent, int64(100))
	assert.Contains(t, sender.sent, int64(300))
	assert.NotContains(t, sender.sent, int64(200))
}

func TestDispatchOnceIsolatesReadFailure(t *testing.T) {
	storage := &fakeDispatchStorage{
		users: []int64{100, 200},
		reminders: map[int64][]contracts.Reminder{
			200: {{ID: 1, UserID: 200, Text: "купить хлеб", Priority: 0}},
		},
		readErrs: map[int64]error{100: fmt.Errorf("база недоступна")},
	}
	sender := newFakeSender()

	err := newTestDispatch(storage, sender).DispatchOnce()
	require.Error(t, err)
	assert.Contains(t, sender.sent, int64(200))
}

func TestDispatchOnceAbortsWhenEnumerationFails(t *testing.T) {
	storage := &fakeDispatchStorage{
		usersErr: fmt.Errorf("база недоступна"),
	}
	sender := newFakeSender()

	err := newTestDispatch(storage, sender).DispatchOnce()
	require.Error(t, err)
	assert.Empty(t, sender.sent, "при сбое перечисления рассылка не начинается")
}

func TestFormatDigest(t *testing.T) {
	digest := formatDigest([]contracts.Reminder{
		{Text: "сдать отчет", Priority: 5},
		{Text: "полить цветы", Priority: 1},
	})

	assert.Equal(t, "🔔 Твои напоминания на сегодня:\n\n1. [приоритет 5] сдать отчет\n2. [приоритет 1] полить цветы\n", digest)
}
