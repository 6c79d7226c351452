package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"SleepySmurf/internal/config"
	"SleepySmurf/internal/contracts"
)

// SQLiteStorage реализует contracts.Storage поверх встраиваемой базы.
// Используется для локального запуска без Postgres; семантика операций
// идентична PostgresStorage.
type SQLiteStorage struct {
	db            *sql.DB
	limits        config.LimitsConfig
	retentionDays int
	clock         clockwork.Clock
}

// NewSQLiteStorage открывает (или создает) базу по указанному пути
func NewSQLiteStorage(dbPath string, limits config.LimitsConfig, retentionDays int, clock clockwork.Clock) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы: %w", err)
	}

	// WAL для корректной работы при параллельных обращениях
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка включения WAL: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{
		db:            db,
		limits:        limits,
		retentionDays: retentionDays,
		clock:         clock,
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			telegram_id   INTEGER PRIMARY KEY,
			username      TEXT NOT NULL DEFAULT '',
			first_name    TEXT NOT NULL DEFAULT '',
			last_name     TEXT NOT NULL DEFAULT '',
			registered_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reminders (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id      INTEGER NOT NULL,
			text         TEXT    NOT NULL,
			priority     INTEGER NOT NULL,
			created_at   TEXT    NOT NULL,
			expires_at   TEXT    NOT NULL,
			is_completed INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS deleted_reminders (
			original_id INTEGER NOT NULL,
			user_id     INTEGER NOT NULL,
			text        TEXT    NOT NULL,
			priority    INTEGER NOT NULL,
			created_at  TEXT    NOT NULL,
			deleted_at  TEXT    NOT NULL,
			reason      TEXT    NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	return nil
}

// AddUser регистрирует пользователя (идемпотентный upsert)
func (s *SQLiteStorage) AddUser(telegramID int64, username, firstName, lastName string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (telegram_id, username, first_name, last_name, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name
	`, telegramID, username, firstName, lastName, encodeTime(s.clock.Now()))
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return nil
}

// AddReminder валидирует данные и сохраняет напоминание
func (s *SQLiteStorage) AddReminder(userID int64, text string, priority, days int) (int64, error) {
	if err := ValidateReminderInput(text, priority, days, s.limits); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)

	result, err := s.db.Exec(`
		INSERT INTO reminders (user_id, text, priority, created_at, expires_at, is_completed)
		VALUES (?, ?, ?, ?, ?, 0)
	`, userID, text, priority, encodeTime(now), encodeTime(expiresAt))
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения напоминания: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID напоминания: %w", err)
	}

	log.Printf("[Storage] Создано напоминание id=%d для пользователя %d (приоритет %d, срок %d дн.)", id, userID, priority, days)
	return id, nil
}

// GetTodayReminders возвращает активные напоминания на сегодня
func (s *SQLiteStorage) GetTodayReminders(userID int64) ([]contracts.Reminder, error) {
	dayStart, dayEnd := dayWindow(s.clock.Now())

	rows, err := s.db.Query(`
		SELECT id, user_id, text, priority, created_at, expires_at, is_completed
		FROM reminders
		WHERE user_id = ? AND is_completed = 0
		  AND expires_at >= ? AND expires_at < ?
		ORDER BY priority DESC, id ASC
	`, userID, encodeTime(dayStart), encodeTime(dayEnd))
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса напоминаний: %w", err)
	}
	defer rows.Close()

	return sqliteScanReminders(rows)
}

// GetAllUsers возвращает ID всех зарегистрированных пользователей
func (s *SQLiteStorage) GetAllUsers() ([]int64, error) {
	rows, err := s.db.Query(`SELECT telegram_id FROM users ORDER BY telegram_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUsers возвращает всех пользователей с метаданными (для HTTP API)
func (s *SQLiteStorage) GetUsers() ([]contracts.TelegramUser, error) {
	rows, err := s.db.Query(`
		SELECT telegram_id, username, first_name, last_name, registered_at
		FROM users ORDER BY registered_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var users []contracts.TelegramUser
	for rows.Next() {
		var u contracts.TelegramUser
		var registeredAt string
		if err := rows.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &registeredAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		u.RegisteredAt = decodeTime(registeredAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteReminder архивирует и удаляет напоминание одной транзакцией
func (s *SQLiteStorage) DeleteReminder(reminderID, requestingUserID int64, reason string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	var r contracts.Reminder
	var createdAt string
	err = tx.QueryRow(
		`SELECT id, user_id, text, priority, created_at FROM reminders WHERE id = ?`,
		reminderID,
	).Scan(&r.ID, &r.UserID, &r.Text, &r.Priority, &createdAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка поиска напоминания: %w", err)
	}

	if r.UserID != requestingUserID {
		log.Printf("[Storage] Отказ в удалении: напоминание %d не принадлежит пользователю %d", reminderID, requestingUserID)
		return false, nil
	}

	_, err = tx.Exec(`
		INSERT INTO deleted_reminders (original_id, user_id, text, priority, created_at, deleted_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.Text, r.Priority, createdAt, encodeTime(s.clock.Now()), reason)
	if err != nil {
		return false, fmt.Errorf("ошибка архивирования напоминания: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM reminders WHERE id = ?`, reminderID); err != nil {
		return false, fmt.Errorf("ошибка удаления напоминания: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("ошибка фиксации удаления: %w", err)
	}

	log.Printf("[Storage] Напоминание %d удалено пользователем %d (причина: %s)", reminderID, requestingUserID, reason)
	return true, nil
}

// GetDeletedReminders возвращает историю удалений пользователя
func (s *SQLiteStorage) GetDeletedReminders(userID int64, limit int) ([]contracts.DeletedReminder, error) {
	rows, err := s.db.Query(`
		SELECT original_id, user_id, text, priority, created_at, deleted_at, reason
		FROM deleted_reminders
		WHERE user_id = ?
		ORDER BY deleted_at DESC, original_id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории: %w", err)
	}
	defer rows.Close()

	return sqliteScanDeletedReminders(rows)
}

// DeleteOldReminders архивирует просроченные напоминания и чистит историю
func (s *SQLiteStorage) DeleteOldReminders() error {
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -s.retentionDays)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, user_id, text, priority, created_at
		FROM reminders WHERE expires_at < ?
	`, encodeTime(now))
	if err != nil {
		return fmt.Errorf("ошибка выборки просроченных напоминаний: %w", err)
	}

	type expiredRow struct {
		id        int64
		userID    int64
		text      string
		priority  int
		createdAt string
	}
	var expired []expiredRow
	for rows.Next() {
		var e expiredRow
		if err := rows.Scan(&e.id, &e.userID, &e.text, &e.priority, &e.createdAt); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка сканирования просроченного напоминания: %w", err)
		}
		expired = append(expired, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("ошибка чтения просроченных напоминаний: %w", err)
	}
	rows.Close()

	for _, e := range expired {
		_, err = tx.Exec(`
			INSERT INTO deleted_reminders (original_id, user_id, text, priority, created_at, deleted_at, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.id, e.userID, e.text, e.priority, e.createdAt, encodeTime(now), contracts.ReasonExpired)
		if err != nil {
			return fmt.Errorf("ошибка архивирования просроченного напоминания %d: %w", e.id, err)
		}
		if _, err := tx.Exec(`DELETE FROM reminders WHERE id = ?`, e.id); err != nil {
			return fmt.Errorf("ошибка удаления просроченного напоминания %d: %w", e.id, err)
		}
	}

	result, err := tx.Exec(`DELETE FROM deleted_reminders WHERE deleted_at < ?`, encodeTime(cutoff))
	if err != nil {
		return fmt.Errorf("ошибка чистки истории: %w", err)
	}
	pruned, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации чистки: %w", err)
	}

	log.Printf("[Storage] Чистка выполнена: просрочено %d, удалено из истории %d", len(expired), pruned)
	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// encodeTime сериализует время в RFC3339 с точностью до секунды:
// формат одинаковой длины, поэтому лексикографический порядок строк
// совпадает с хронологическим и сравнения в SQL остаются корректными
func encodeTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func sqliteScanReminders(rows *sql.Rows) ([]contracts.Reminder, error) {
	var reminders []contracts.Reminder
	for rows.Next() {
		var r contracts.Reminder
		var createdAt, expiresAt string
		err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.Priority, &createdAt, &expiresAt, &r.IsCompleted)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования напоминания: %w", err)
		}
		r.CreatedAt = decodeTime(createdAt)
		r.ExpiresAt = decodeTime(expiresAt)
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func sqliteScanDeletedReminders(rows *sql.Rows) ([]contracts.DeletedReminder, error) {
	var deleted []contracts.DeletedReminder
	for rows.Next() {
		var d contracts.DeletedReminder
		var createdAt, deletedAt string
		err := rows.Scan(&d.OriginalID, &d.UserID, &d.Text, &d.Priority, &createdAt, &deletedAt, &d.Reason)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования архивной записи: %w", err)
		}
		d.CreatedAt = decodeTime(createdAt)
		d.DeletedAt = decodeTime(deletedAt)
		deleted = append(deleted, d)
	}
	return deleted, rows.Err()
}
