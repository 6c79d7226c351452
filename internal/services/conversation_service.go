package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"SleepySmurf/internal/config"
)

// ConversationState состояние диалога добавления напоминания
type ConversationState string

const (
	StateAwaitingText     ConversationState = "awaiting_text"
	StateAwaitingPriority ConversationState = "awaiting_priority"
	StateAwaitingDays     ConversationState = "awaiting_days"
)

// Диалог, не получивший ответа за это время, считается брошенным
const conversationTTL = 10 * time.Minute

// ReminderInput собранные и проверенные данные нового напоминания
type ReminderInput struct {
	Text     string
	Priority int
	Days     int
}

type conversation struct {
	state     ConversationState
	text      string
	priority  int
	startedAt time.Time
}

// ConversationService ведет пошаговый диалог сбора данных напоминания:
// текст, затем приоритет, затем срок. Каждый переход валидирует свой ввод
// и переносит вперед только уже собранные поля. Состояние живет в памяти
// процесса: это позиция в диалоге, после рестарта она бессмысленна.
type ConversationService struct {
	limits   config.LimitsConfig
	clock    clockwork.Clock
	sessions map[int64]*conversation
	mu       sync.Mutex
}

// NewConversationService создает сервис диалогов
func NewConversationService(limits config.LimitsConfig, clock clockwork.Clock) *ConversationService {
	return &ConversationService{
		limits:   limits,
		clock:    clock,
		sessions: make(map[int64]*conversation),
	}
}

// Start начинает диалог добавления напоминания и возвращает первый вопрос
func (s *ConversationService) Start(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[chatID] = &conversation{
		state:     StateAwaitingText,
		startedAt: s.clock.Now(),
	}
	return "📝 Введи текст напоминания:"
}

// Active проверяет, идет ли диалог с этим чатом
func (s *ConversationService) Active(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(chatID) != nil
}

// Cancel прерывает диалог; возвращает false, если диалога не было
func (s *ConversationService) Cancel(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session(chatID) == nil {
		return false
	}
	delete(s.sessions, chatID)
	return true
}

// Advance обрабатывает очередной ответ пользователя. Возвращает собранные
// данные на терминальном переходе, иначе следующий вопрос. При неверном
// вводе возвращает ошибку, состояние не продвигается.
func (s *ConversationService) Advance(chatID int64, input string) (*ReminderInput, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.session(chatID)
	if conv == nil {
		return nil, "", fmt.Errorf("диалог не начат или истек")
	}

	input = strings.TrimSpace(input)

	switch conv.state {
	case StateAwaitingText:
		length := utf8.RuneCountInString(input)
		if length == 0 {
			return nil, "", fmt.Errorf("текст не может быть пустым, попробуй еще раз")
		}
		if length > s.limits.MaxTextLength {
			return nil, "", fmt.Errorf("текст длиннее %d символов, сократи его", s.limits.MaxTextLength)
		}
		conv.text = input
		conv.state = StateAwaitingPriority
		return nil, fmt.Sprintf("⭐ Укажи приоритет от %d до %d (%d — самый важный):",
			s.limits.MinPriority, s.limits.MaxPriority, s.limits.MaxPriority), nil

	case StateAwaitingPriority:
		priority, err := strconv.Atoi(input)
		if err != nil || priority < s.limits.MinPriority || priority > s.limits.MaxPriority {
			return nil, "", fmt.Errorf("приоритет должен быть числом от %d до %d",
				s.limits.MinPriority, s.limits.MaxPriority)
		}
		conv.priority = priority
		conv.state = StateAwaitingDays
		return nil, fmt.Sprintf("📅 На сколько дней напоминание? От %d до %d:",
			s.limits.MinDurationDays, s.limits.MaxDurationDays), nil

	case StateAwaitingDays:
		days, err := strconv.Atoi(input)
		if err != nil || days < s.limits.MinDurationDays || days > s.limits.MaxDurationDays {
			return nil, "", fmt.Errorf("срок должен быть числом от %d до %d дней",
				s.limits.MinDurationDays, s.limits.MaxDurationDays)
		}
		result := &ReminderInput{
			Text:     conv.text,
			Priority: conv.priority,
			Days:     days,
		}
		delete(s.sessions, chatID)
		return result, "", nil
	}

	return nil, "", fmt.Errorf("неизвестное состояние диалога: %s", conv.state)
}

// session возвращает живой диалог или nil; вызывать под мьютексом.
// Просроченные диалоги удаляются здесь же.
func (s *ConversationService) session(chatID int64) *conversation {
	conv, ok := s.sessions[chatID]
	if !ok {
		return nil
	}
	if s.clock.Now().Sub(conv.startedAt) > conversationTTL {
		delete(s.sessions, chatID)
		return nil
	}
	return conv
}
