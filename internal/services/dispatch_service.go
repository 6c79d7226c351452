package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"

	"SleepySmurf/internal/contracts"
)

// Периодичность проверки триггера. Заведомо чаще минуты: защита от
// повторного срабатывания лежит в DailyTrigger, а не в интервале.
const dispatchCheckInterval = 30 * time.Second

// DispatchService рассылает ежедневный дайджест напоминаний. Раз в
// календарный день, в настроенное время, перебирает всех пользователей
// и отправляет каждому список его напоминаний на сегодня. Сбой доставки
// одному получателю не прерывает рассылку остальным.
type DispatchService struct {
	storage     contracts.Storage
	sender      contracts.TelegramMessageSender
	trigger     *DailyTrigger
	sendTimeout time.Duration
	clock       clockwork.Clock
	stopChan    chan struct{}
	wg          sync.WaitGroup
	isRunning   bool
	mu          sync.Mutex
}

// NewDispatchService создает сервис ежедневной рассылки
func NewDispatchService(
	storage contracts.Storage,
	sender contracts.TelegramMessageSender,
	trigger *DailyTrigger,
	sendTimeout time.Duration,
	clock clockwork.Clock,
) *DispatchService {
	return &DispatchService{
		storage:     storage,
		sender:      sender,
		trigger:     trigger,
		sendTimeout: sendTimeout,
		clock:       clock,
		stopChan:    make(chan struct{}),
	}
}

// Start запускает фоновый цикл рассылки
func (s *DispatchService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("рассылка уже запущена")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.loop()

	log.Printf("[Dispatch] Ежедневная рассылка запущена")
	return nil
}

// Stop останавливает фоновый цикл рассылки
func (s *DispatchService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("рассылка не запущена")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[Dispatch] Ежедневная рассылка остановлена")
	return nil
}

// loop основной цикл: опрашивает триггер и запускает рассылку
func (s *DispatchService) loop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(dispatchCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if s.trigger.TryFire(s.clock.Now()) {
				s.DispatchOnce()
			}
		case <-s.stopChan:
			return
		}
	}
}

// DispatchOnce выполняет один цикл рассылки по всем пользователям.
// Недоступность хранилища на этапе перечисления отменяет весь цикл:
// частичный список пользователей не имеет осмысленной семантики.
func (s *DispatchService) DispatchOnce() error {
	runID := uuid.New().String()[:8]
	log.Printf("[Dispatch] Начинаем рассылку (run=%s)", runID)

	userIDs, err := s.storage.GetAllUsers()
	if err != nil {
		log.Printf("[Dispatch] Рассылка отменена, ошибка перечисления пользователей (run=%s): %v", runID, err)
		return fmt.Errorf("ошибка перечисления пользователей: %w", err)
	}

	var delivered, skipped int
	var deliveryErrs error

	for _, userID := range userIDs {
		reminders, err := s.storage.GetTodayReminders(userID)
		if err != nil {
			// Сбой чтения по одному пользователю изолируем так же,
			// как сбой доставки
			log.Printf("[Dispatch] Ошибка чтения напоминаний пользователя %d (run=%s): %v", userID, runID, err)
			deliveryErrs = multierr.Append(deliveryErrs, fmt.Errorf("пользователь %d: %w", userID, err))
			continue
		}

		if len(reminders) == 0 {
			skipped++
			continue
		}

		digest := formatDigest(reminders)
		if err := s.sendWithTimeout(userID, digest); err != nil {
			log.Printf("[Dispatch] Ошибка доставки пользователю %d (run=%s): %v", userID, runID, err)
			deliveryErrs = multierr.Append(deliveryErrs, fmt.Errorf("пользователь %d: %w", userID, err))
			continue
		}
		delivered++
	}

	log.Printf("[Dispatch] Рассылка завершена (run=%s): доставлено %d, без напоминаний %d, ошибок %d",
		runID, delivered, skipped, len(multierr.Errors(deliveryErrs)))
	return deliveryErrs
}

// sendWithTimeout отправляет сообщение с ограничением по времени, чтобы
// зависший получатель не задерживал остальных
func (s *DispatchService) sendWithTimeout(userID int64, text string) error {
	done := make(chan error, 1)
	go func() {
		done <- s.sender.SendMessage(userID, text)
	}()

	select {
	case err := <-done:
		return err
	case <-s.clock.After(s.sendTimeout):
		return fmt.Errorf("превышено время ожидания отправки (%v)", s.sendTimeout)
	}
}

// formatDigest формирует текст дайджеста: напоминания приходят уже
// отсортированными по убыванию приоритета
func formatDigest(reminders []contracts.Reminder) string {
	text := "🔔 Твои напоминания на сегодня:\n\n"
	for i, r := range reminders {
		text += fmt.Sprintf("%d. [приоритет %d] %s\n", i+1, r.Priority, r.Text)
	}
	return text
}
