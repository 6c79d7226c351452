package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"SleepySmurf/internal/contracts"
)

const sweepCheckInterval = 30 * time.Second

// SweepService раз в календарный день архивирует просроченные
// напоминания и чистит историю удалений. Работает независимо от
// рассылки: это отдельная задача со своим триггером.
type SweepService struct {
	storage   contracts.Storage
	trigger   *DailyTrigger
	clock     clockwork.Clock
	stopChan  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.Mutex
}

// NewSweepService создает сервис ежедневной чистки
func NewSweepService(storage contracts.Storage, trigger *DailyTrigger, clock clockwork.Clock) *SweepService {
	return &SweepService{
		storage:  storage,
		trigger:  trigger,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
}

// Start запускает фоновый цикл чистки
func (s *SweepService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("чистка уже запущена")
	}

	s.stopChan = make(chan struct{})
	s.isRunning = true
	s.wg.Add(1)

	go s.loop()

	log.Printf("[Sweep] Ежедневная чистка запущена")
	return nil
}

// Stop останавливает фоновый цикл чистки
func (s *SweepService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("чистка не запущена")
	}

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	s.wg.Wait()
	s.isRunning = false

	log.Printf("[Sweep] Ежедневная чистка остановлена")
	return nil
}

func (s *SweepService) loop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(sweepCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if s.trigger.TryFire(s.clock.Now()) {
				if err := s.storage.DeleteOldReminders(); err != nil {
					// Попробуем снова в следующем окне
					log.Printf("[Sweep] Ошибка чистки: %v", err)
				}
			}
		case <-s.stopChan:
			return
		}
	}
}
