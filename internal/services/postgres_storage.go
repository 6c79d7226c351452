package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jonboulle/clockwork"

	"SleepySmurf/internal/config"
	"SleepySmurf/internal/contracts"
)

// PostgresStorage реализует contracts.Storage поверх Postgres.
// Архивирование и удаление выполняются в одной транзакции, поэтому
// читатель никогда не видит напоминание одновременно активным и архивным.
type PostgresStorage struct {
	db            *sql.DB
	limits        config.LimitsConfig
	retentionDays int
	clock         clockwork.Clock
}

// NewPostgresStorage создает хранилище поверх открытого подключения
func NewPostgresStorage(db *sql.DB, limits config.LimitsConfig, retentionDays int, clock clockwork.Clock) *PostgresStorage {
	return &PostgresStorage{
		db:            db,
		limits:        limits,
		retentionDays: retentionDays,
		clock:         clock,
	}
}

// AddUser регистрирует пользователя. Повторная регистрация обновляет
// метаданные, registered_at сохраняется с первого контакта.
func (s *PostgresStorage) AddUser(telegramID int64, username, firstName, lastName string) error {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, registered_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (telegram_id) DO UPDATE
			  SET username = EXCLUDED.username,
				  first_name = EXCLUDED.first_name,
				  last_name = EXCLUDED.last_name`

	_, err := s.db.Exec(query, telegramID, username, firstName, lastName, s.clock.Now())
	if err != nil {
		return fmt.Errorf("ошибка сохранения пользователя: %w", err)
	}
	return nil
}

// AddReminder валидирует данные и сохраняет напоминание. При ошибке
// валидации состояние не меняется и ID не выделяется.
func (s *PostgresStorage) AddReminder(userID int64, text string, priority, days int) (int64, error) {
	if err := ValidateReminderInput(text, priority, days, s.limits); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(time.Duration(days) * 24 * time.Hour)

	query := `INSERT INTO reminders (user_id, text, priority, created_at, expires_at, is_completed)
			  VALUES ($1, $2, $3, $4, $5, FALSE) RETURNING id`

	var id int64
	if err := s.db.QueryRow(query, userID, text, priority, now, expiresAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка сохранения напоминания: %w", err)
	}

	log.Printf("[Storage] Создано напоминание id=%d для пользователя %d (приоритет %d, срок %d дн.)", id, userID, priority, days)
	return id, nil
}

// GetTodayReminders возвращает активные напоминания, срок которых
// истекает в интервале [начало сегодняшнего дня, начало завтрашнего).
// Окно пересчитывается при каждом вызове.
func (s *PostgresStorage) GetTodayReminders(userID int64) ([]contracts.Reminder, error) {
	dayStart, dayEnd := dayWindow(s.clock.Now())

	query := `SELECT id, user_id, text, priority, created_at, expires_at, is_completed
			  FROM reminders
			  WHERE user_id = $1 AND is_completed = FALSE
				AND expires_at >= $2 AND expires_at < $3
			  ORDER BY priority DESC, id ASC`

	rows, err := s.db.Query(query, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса напоминаний: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// GetAllUsers возвращает ID всех зарегистрированных пользователей
func (s *PostgresStorage) GetAllUsers() ([]int64, error) {
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
func (s *PostgresStorage) GetUsers() ([]contracts.TelegramUser, error) {
	query := `SELECT telegram_id, username, first_name, last_name, registered_at
			  FROM users ORDER BY registered_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса пользователей: %w", err)
	}
	defer rows.Close()

	var users []contracts.TelegramUser
	for rows.Next() {
		var u contracts.TelegramUser
		if err := rows.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.RegisteredAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteReminder архивирует и удаляет напоминание одной транзакцией.
// Владение проверяется заново в момент удаления: между показом списка
// и подтверждением состояние могло измениться.
func (s *PostgresStorage) DeleteReminder(reminderID, requestingUserID int64, reason string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	var r contracts.Reminder
	err = tx.QueryRow(
		`SELECT id, user_id, text, priority, created_at FROM reminders WHERE id = $1 FOR UPDATE`,
		reminderID,
	).Scan(&r.ID, &r.UserID, &r.Text, &r.Priority, &r.CreatedAt)
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

	_, err = tx.Exec(
		`INSERT INTO deleted_reminders (original_id, user_id, text, priority, created_at, deleted_at, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.UserID, r.Text, r.Priority, r.CreatedAt, s.clock.Now(), reason,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка архивирования напоминания: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM reminders WHERE id = $1`, reminderID); err != nil {
		return false, fmt.Errorf("ошибка удаления напоминания: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("ошибка фиксации удаления: %w", err)
	}

	log.Printf("[Storage] Напоминание %d удалено пользователем %d (причина: %s)", reminderID, requestingUserID, reason)
	return true, nil
}

// GetDeletedReminders возвращает историю удалений пользователя,
// сначала самые свежие
func (s *PostgresStorage) GetDeletedReminders(userID int64, limit int) ([]contracts.DeletedReminder, error) {
	query := `SELECT original_id, user_id, text, priority, created_at, deleted_at, reason
			  FROM deleted_reminders
			  WHERE user_id = $1
			  ORDER BY deleted_at DESC, original_id DESC
			  LIMIT $2`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории: %w", err)
	}
	defer rows.Close()

	return scanDeletedReminders(rows)
}

// DeleteOldReminders архивирует просроченные напоминания и чистит
// историю старше окна хранения. Обе операции в одной транзакции; повторный
// запуск без сдвига времени не создает дубликатов в архиве.
func (s *PostgresStorage) DeleteOldReminders() error {
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -s.retentionDays)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback()

	// DELETE ... RETURNING блокирует строки, поэтому параллельное ручное
	// удаление той же строки не приводит к двойному архивированию
	rows, err := tx.Query(
		`DELETE FROM reminders WHERE expires_at < $1
		 RETURNING id, user_id, text, priority, created_at`,
		now,
	)
	if err != nil {
		return fmt.Errorf("ошибка выборки просроченных напоминаний: %w", err)
	}

	var expired []contracts.Reminder
	for rows.Next() {
		var r contracts.Reminder
		if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.Priority, &r.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка сканирования просроченного напоминания: %w", err)
		}
		expired = append(expired, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("ошибка чтения просроченных напоминаний: %w", err)
	}
	rows.Close()

	for _, r := range expired {
		_, err = tx.Exec(
			`INSERT INTO deleted_reminders (original_id, user_id, text, priority, created_at, deleted_at, reason)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.ID, r.UserID, r.Text, r.Priority, r.CreatedAt, now, contracts.ReasonExpired,
		)
		if err != nil {
			return fmt.Errorf("ошибка архивирования просроченного напоминания %d: %w", r.ID, err)
		}
	}

	result, err := tx.Exec(`DELETE FROM deleted_reminders WHERE deleted_at < $1`, cutoff)
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
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// dayWindow возвращает полуоткрытый интервал [начало дня, начало следующего дня)
func dayWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

// scanReminders читает строки выборки в срез напоминаний
func scanReminders(rows *sql.Rows) ([]contracts.Reminder, error) {
	var reminders []contracts.Reminder
	for rows.Next() {
		var r contracts.Reminder
		err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.Priority, &r.CreatedAt, &r.ExpiresAt, &r.IsCompleted)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования напоминания: %w", err)
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// scanDeletedReminders читает строки выборки в срез архивных записей
func scanDeletedReminders(rows *sql.Rows) ([]contracts.DeletedReminder, error) {
	var deleted []contracts.DeletedReminder
	for rows.Next() {
		var d contracts.DeletedReminder
		err := rows.Scan(&d.OriginalID, &d.UserID, &d.Text, &d.Priority, &d.CreatedAt, &d.DeletedAt, &d.Reason)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования архивной записи: %w", err)
		}
		deleted = append(deleted, d)
	}
	return deleted, rows.Err()
}
