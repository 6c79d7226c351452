package contracts

import "time"

// Причины удаления напоминания
const (
	ReasonUserRequested = "user-requested"
	ReasonExpired       = "expired"
)

// Reminder представляет активное напоминание пользователя
type Reminder struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Text        string    `json:"text"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsCompleted bool      `json:"is_completed"`
}

// DeletedReminder представляет архивную запись удаленного напоминания
type DeletedReminder struct {
	OriginalID int64     `json:"original_id"`
	UserID     int64     `json:"user_id"`
	Text       string    `json:"text"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"created_at"`
	DeletedAt  time.Time `json:"deleted_at"`
	Reason     string    `json:"reason"`
}

// Storage определяет контракт хранилища напоминаний.
// Все мутации атомарны: сбой процесса между валидацией и записью
// не оставляет частичного состояния.
type Storage interface {
	// AddUser регистрирует пользователя (идемпотентный upsert)
	AddUser(telegramID int64, username, firstName, lastName string) error

	// AddReminder валидирует и сохраняет напоминание, возвращает его ID
	AddReminder(userID int64, text string, priority, days int) (int64, error)

	// GetTodayReminders возвращает активные напоминания на сегодня,
	// отсортированные по приоритету (убывание), при равенстве — по порядку добавления
	GetTodayReminders(userID int64) ([]Reminder, error)

	// GetAllUsers возвращает ID всех зарегистрированных пользователей
	GetAllUsers() ([]int64, error)

	// DeleteReminder архивирует и удаляет напоминание, если оно
	// принадлежит запрашивающему пользователю
	DeleteReminder(reminderID, requestingUserID int64, reason string) (bool, error)

	// GetDeletedReminders возвращает историю удалений (сначала свежие)
	GetDeletedReminders(userID int64, limit int) ([]DeletedReminder, error)

	// DeleteOldReminders архивирует просроченные напоминания и
	// чистит историю старше окна хранения
	DeleteOldReminders() error

	// Close освобождает ресурсы хранилища (повторный вызов безопасен)
	Close() error
}
