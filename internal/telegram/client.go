package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"SleepySmurf/internal/contracts"
)

// TelegramClient представляет клиент для работы с Telegram Bot API
type TelegramClient struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

// Message представляет сообщение Telegram
type Message struct {
	MessageID int            `json:"message_id"`
	From      contracts.User `json:"from"`
	Chat      Chat           `json:"chat"`
	Date      int            `json:"date"`
	Text      string         `json:"text"`
}

// User представляет пользователя Telegram
type User = contracts.User

// Chat представляет чат Telegram
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// CallbackQuery представляет callback query от inline кнопки
type CallbackQuery struct {
	ID   string `json:"id"`
	From User   `json:"from"`
	Data string `json:"data"`
}

// Update представляет обновление от Telegram
type Update struct {
	UpdateID      int            `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// GetUpdatesResponse представляет ответ на запрос обновлений
type GetUpdatesResponse struct {
	OK     bool     `json:"ok"`
	Result []Update `json:"result"`
}

// SendMessageResponse представляет ответ на отправку сообщения
type SendMessageResponse struct {
	OK     bool    `json:"ok"`
	Result Message `json:"result"`
}

// InlineKeyboardButton представляет кнопку inline клавиатуры
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboardMarkup представляет inline клавиатуру
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// KeyboardButton представляет кнопку reply клавиатуры
type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboardMarkup представляет reply клавиатуру
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard"`
}

// NewClient создает новый экземпляр TelegramClient
func NewClient(token string) *TelegramClient {
	return &TelegramClient{
		Token:   token,
		BaseURL: "https://api.telegram.org/bot" + token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetMe получает информацию о боте
func (c *TelegramClient) GetMe() (map[string]interface{}, error) {
	resp, err := c.HTTPClient.Get(c.BaseURL + "/getMe")
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса getMe: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	return result, nil
}

// GetUpdates получает обновления от Telegram
func (c *TelegramClient) GetUpdates(offset, limit int) (*GetUpdatesResponse, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	url := c.BaseURL + "/getUpdates"
	if len(params) > 0 {
		url += "?" + params.Encode()
	}

	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса getUpdates: %w", err)
	}
	defer resp.Body.Close()

	var result GetUpdatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	return &result, nil
}

// SendMessage отправляет сообщение в чат
func (c *TelegramClient) SendMessage(chatID int64, text string, parseMode string) (*SendMessageResponse, error) {
	request := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if parseMode != "" {
		request["parse_mode"] = parseMode
	}
	return c.postSendMessage(request)
}

// SendMessageHTML отправляет HTML-сообщение
func (c *TelegramClient) SendMessageHTML(chatID int64, text string) (*SendMessageResponse, error) {
	return c.SendMessage(chatID, text, "HTML")
}

// SendMessageWithKeyboard отправляет сообщение с inline клавиатурой
func (c *TelegramClient) SendMessageWithKeyboard(chatID int64, text string, keyboard *InlineKeyboardMarkup) (*SendMessageResponse, error) {
	request := map[string]interface{}{
		"chat_id":      chatID,
		"text":         text,
		"parse_mode":   "HTML",
		"reply_markup": keyboard,
	}
	return c.postSendMessage(request)
}

// SendMessageWithReplyKeyboard отправляет сообщение с reply клавиатурой
func (c *TelegramClient) SendMessageWithReplyKeyboard(chatID int64, text string, keyboard *ReplyKeyboardMarkup) (*SendMessageResponse, error) {
	request := map[string]interface{}{
		"chat_id":      chatID,
		"text":         text,
		"reply_markup": keyboard,
	}
	return c.postSendMessage(request)
}

// postSendMessage выполняет запрос sendMessage и разбирает ответ
func (c *TelegramClient) postSendMessage(request map[string]interface{}) (*SendMessageResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("ошибка маршалинга запроса: %w", err)
	}

	resp, err := c.HTTPClient.Post(
		c.BaseURL+"/sendMessage",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка отправки сообщения: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	var result SendMessageResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	if !result.OK {
		// Пытаемся извлечь детали ошибки
		var errorResponse map[string]interface{}
		if err := json.Unmarshal(bodyBytes, &errorResponse); err == nil {
			if description, ok := errorResponse["description"].(string); ok {
				log.Printf("[TelegramAPI] Ошибка отправки сообщения: %s", description)
				return &result, fmt.Errorf("Telegram API error: %s", description)
			}
		}
		return &result, fmt.Errorf("Telegram API вернул ошибку: OK=false")
	}

	return &result, nil
}

// AnswerCallbackQuery отвечает на callback query
func (c *TelegramClient) AnswerCallbackQuery(callbackQueryID, text string) error {
	params := url.Values{}
	params.Set("callback_query_id", callbackQueryID)
	if text != "" {
		params.Set("text", text)
	}

	resp, err := c.HTTPClient.PostForm(c.BaseURL+"/answerCallbackQuery", params)
	if err != nil {
		return fmt.Errorf("ошибка ответа на callback query: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	if ok, exists := result["ok"].(bool); !exists || !ok {
		return fmt.Errorf("ошибка Telegram API: %v", result["description"])
	}
	return nil
}

// SetWebhook устанавливает webhook для бота
func (c *TelegramClient) SetWebhook(webhookURL string) (map[string]interface{}, error) {
	params := url.Values{}
	params.Set("url", webhookURL)

	resp, err := c.HTTPClient.PostForm(c.BaseURL+"/setWebhook", params)
	if err != nil {
		return nil, fmt.Errorf("ошибка установки webhook: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	return result, nil
}

// DeleteWebhook удаляет webhook
func (c *TelegramClient) DeleteWebhook() (map[string]interface{}, error) {
	resp, err := c.HTTPClient.Post(c.BaseURL+"/deleteWebhook", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления webhook: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ошибка декодирования ответа: %w", err)
	}

	return result, nil
}

// ParseUpdate парсит обновление из JSON
func (c *TelegramClient) ParseUpdate(body io.Reader) (*Update, error) {
	var update Update
	if err := json.NewDecoder(body).Decode(&update); err != nil {
		return nil, fmt.Errorf("ошибка парсинга обновления: %w", err)
	}
	return &update, nil
}
