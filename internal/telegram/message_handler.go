package telegram

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"SleepySmurf/internal/contracts"
	"SleepySmurf/internal/services"
)

// Кнопки основной клавиатуры
const (
	buttonAdd     = "➕ Добавить напоминание"
	buttonList    = "📋 Мои напоминания"
	buttonDelete  = "🗑 Удалить напоминание"
	buttonHistory = "🕓 История удалённых"
)

// MessageProcessor обрабатывает сообщения Telegram бота
type MessageProcessor struct {
	storage       contracts.Storage
	conversations *services.ConversationService
}

// NewMessageProcessor создает новый обработчик сообщений
func NewMessageProcessor(storage contracts.Storage, conversations *services.ConversationService) *MessageProcessor {
	return &MessageProcessor{
		storage:       storage,
		conversations: conversations,
	}
}

// ProcessMessage обрабатывает входящее сообщение
func (p *MessageProcessor) ProcessMessage(client *TelegramClient, update Update) error {
	if update.CallbackQuery != nil {
		return p.handleCallback(client, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}

	chatID := update.Message.Chat.ID
	user := update.Message.From
	text := strings.TrimSpace(update.Message.Text)

	// Регистрируем пользователя при каждом контакте: upsert обновляет
	// метаданные, дата регистрации сохраняется с первого раза
	if err := p.storage.AddUser(user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		log.Printf("[MessageProcessor] Ошибка регистрации пользователя %d: %v", user.ID, err)
	}

	if text == "/cancel" {
		return p.handleCancel(client, chatID)
	}

	// Идущий диалог добавления имеет приоритет над командами
	if p.conversations.Active(chatID) {
		return p.handleConversationStep(client, chatID, user.ID, text)
	}

	switch text {
	case "/start":
		return p.handleStart(client, chatID, user.FirstName)
	case buttonAdd, "/add":
		prompt := p.conversations.Start(chatID)
		return p.sendMessage(client, chatID, prompt)
	case buttonList, "/list":
		return p.handleList(client, chatID, user.ID)
	case buttonDelete, "/delete":
		return p.handleDelete(client, chatID, user.ID)
	case buttonHistory, "/history":
		return p.handleHistory(client, chatID, user.ID)
	default:
		return p.sendMessage(client, chatID, "Не понимаю. Используй кнопки меню или команду /start.")
	}
}

// handleStart приветствует пользователя и показывает клавиатуру
func (p *MessageProcessor) handleStart(client *TelegramClient, chatID int64, firstName string) error {
	greeting := fmt.Sprintf("Привет, %s! Я бот Sleepy_smurf для напоминаний заданий на день и на неделю.\n"+
		"Каждый день в 8:00 я буду присылать тебе список дел.", firstName)

	_, err := client.SendMessageWithReplyKeyboard(chatID, greeting, makeMainKeyboard())
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки приветствия: %v", err)
	}
	return err
}

// handleConversationStep продвигает диалог добавления напоминания
func (p *MessageProcessor) handleConversationStep(client *TelegramClient, chatID, userID int64, text string) error {
	input, prompt, err := p.conversations.Advance(chatID, text)
	if err != nil {
		return p.sendErrorMessage(client, chatID, err.Error())
	}

	if input == nil {
		return p.sendMessage(client, chatID, prompt)
	}

	// Терминальный переход: сохраняем напоминание
	id, err := p.storage.AddReminder(userID, input.Text, input.Priority, input.Days)
	if err != nil {
		if services.IsValidationError(err) {
			return p.sendErrorMessage(client, chatID, err.Error())
		}
		log.Printf("[MessageProcessor] Ошибка сохранения напоминания пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "не удалось сохранить напоминание, попробуй позже")
	}

	confirmation := fmt.Sprintf("✅ Напоминание №%d сохранено: «%s» (приоритет %d, на %d дн.)",
		id, input.Text, input.Priority, input.Days)
	return p.sendMessage(client, chatID, confirmation)
}

// handleCancel прерывает идущий диалог
func (p *MessageProcessor) handleCancel(client *TelegramClient, chatID int64) error {
	if p.conversations.Cancel(chatID) {
		return p.sendMessage(client, chatID, "Добавление напоминания отменено.")
	}
	return p.sendMessage(client, chatID, "Нечего отменять.")
}

// handleList показывает напоминания на сегодня
func (p *MessageProcessor) handleList(client *TelegramClient, chatID, userID int64) error {
	reminders, err := p.storage.GetTodayReminders(userID)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка чтения напоминаний пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "не удалось получить напоминания, попробуй позже")
	}

	if len(reminders) == 0 {
		return p.sendMessage(client, chatID, "На сегодня напоминаний нет 🎉")
	}

	text := "📋 Напоминания на сегодня:\n\n"
	for i, r := range reminders {
		text += fmt.Sprintf("%d. [приоритет %d] %s\n", i+1, r.Priority, r.Text)
	}
	return p.sendMessage(client, chatID, text)
}

// handleDelete показывает напоминания с кнопками удаления
func (p *MessageProcessor) handleDelete(client *TelegramClient, chatID, userID int64) error {
	reminders, err := p.storage.GetTodayReminders(userID)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка чтения напоминаний пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "не удалось получить напоминания, попробуй позже")
	}

	if len(reminders) == 0 {
		return p.sendMessage(client, chatID, "Удалять нечего: на сегодня напоминаний нет.")
	}

	keyboard := &InlineKeyboardMarkup{}
	for _, r := range reminders {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, []InlineKeyboardButton{
			{
				Text:         fmt.Sprintf("🗑 [%d] %s", r.Priority, truncate(r.Text, 40)),
				CallbackData: fmt.Sprintf("del:%d", r.ID),
			},
		})
	}

	_, err = client.SendMessageWithKeyboard(chatID, "Выбери напоминание для удаления:", keyboard)
	return err
}

// handleHistory показывает историю удаленных напоминаний
func (p *MessageProcessor) handleHistory(client *TelegramClient, chatID, userID int64) error {
	deleted, err := p.storage.GetDeletedReminders(userID, 10)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка чтения истории пользователя %d: %v", userID, err)
		return p.sendErrorMessage(client, chatID, "не удалось получить историю, попробуй позже")
	}

	if len(deleted) == 0 {
		return p.sendMessage(client, chatID, "История удалённых напоминаний пуста.")
	}

	text := "🕓 Последние удалённые напоминания:\n\n"
	for _, d := range deleted {
		reason := "удалено вручную"
		if d.Reason == contracts.ReasonExpired {
			reason = "истек срок"
		}
		text += fmt.Sprintf("• «%s» — %s (%s)\n", d.Text, reason, d.DeletedAt.Format("02.01.2006 15:04"))
	}
	return p.sendMessage(client, chatID, text)
}

// handleCallback обрабатывает нажатия inline кнопок
func (p *MessageProcessor) handleCallback(client *TelegramClient, query *CallbackQuery) error {
	userID := query.From.ID

	if strings.HasPrefix(query.Data, "del:") {
		idStr := strings.TrimPrefix(query.Data, "del:")
		reminderID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return client.AnswerCallbackQuery(query.ID, "Некорректный запрос")
		}

		// Владение перепроверяется в хранилище: список мог устареть
		deleted, err := p.storage.DeleteReminder(reminderID, userID, contracts.ReasonUserRequested)
		if err != nil {
			log.Printf("[MessageProcessor] Ошибка удаления напоминания %d: %v", reminderID, err)
			return client.AnswerCallbackQuery(query.ID, "Ошибка, попробуй позже")
		}
		if !deleted {
			return client.AnswerCallbackQuery(query.ID, "Напоминание не найдено")
		}

		if err := client.AnswerCallbackQuery(query.ID, "Удалено"); err != nil {
			log.Printf("[MessageProcessor] Ошибка ответа на callback: %v", err)
		}
		return p.sendMessage(client, userID, fmt.Sprintf("🗑 Напоминание №%d удалено.", reminderID))
	}

	return client.AnswerCallbackQuery(query.ID, "")
}

// truncate обрезает строку до limit символов для текста кнопки
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
