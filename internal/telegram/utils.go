package telegram

import (
	"log"
)

// sendMessage отправляет обычное сообщение
func (p *MessageProcessor) sendMessage(client *TelegramClient, chatID int64, text string) error {
	_, err := client.SendMessage(chatID, text, "")
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки сообщения: %v", err)
	}
	return err
}

// sendErrorMessage отправляет сообщение об ошибке
func (p *MessageProcessor) sendErrorMessage(client *TelegramClient, chatID int64, text string) error {
	_, err := client.SendMessageHTML(chatID, "❌ <b>Ошибка:</b> "+text)
	if err != nil {
		log.Printf("[MessageProcessor] Ошибка отправки сообщения об ошибке: %v", err)
	}
	return err
}

// makeMainKeyboard возвращает основную reply клавиатуру бота
func makeMainKeyboard() *ReplyKeyboardMarkup {
	return &ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{
				{Text: buttonAdd},
				{Text: buttonList},
			},
			{
				{Text: buttonDelete},
				{Text: buttonHistory},
			},
		},
		ResizeKeyboard: true,
	}
}
