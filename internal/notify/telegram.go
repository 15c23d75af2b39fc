package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender is the slice of the Telegram bot API the channel uses
// (allows mocking in tests).
type MessageSender interface {
	SendMessage(chatID int64, text string) error
}

// TelegramChannel delivers notifications to one Telegram chat.
type TelegramChannel struct {
	sender MessageSender
	chatID int64
}

// NewTelegramChannel creates a channel backed by the Telegram bot API.
func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{sender: &botSender{bot: bot}, chatID: chatID}, nil
}

// NewTelegramChannelWithSender creates a channel with a custom sender.
func NewTelegramChannelWithSender(sender MessageSender, chatID int64) *TelegramChannel {
	return &TelegramChannel{sender: sender, chatID: chatID}
}

// Send delivers one notification message.
func (t *TelegramChannel) Send(title, body string) error {
	return t.sender.SendMessage(t.chatID, title+"\n\n"+body)
}

var _ Channel = (*TelegramChannel)(nil)

// botSender adapts tgbotapi.BotAPI to the MessageSender interface.
type botSender struct {
	bot *tgbotapi.BotAPI
}

func (s *botSender) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.bot.Send(msg)
	return err
}
