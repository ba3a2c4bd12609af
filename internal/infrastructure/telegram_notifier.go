package infrastructure

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramNotifier pings the operator group when a conversation asks for a
// human. Disabled (nil bot) when no token is configured; every call is then
// a no-op so the router never has to care.
type TelegramNotifier struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	if token == "" || chatID == 0 {
		logrus.Info("telegram notifier disabled (token or chat id missing)")
		return &TelegramNotifier{}
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logrus.Warnf("telegram notifier disabled: %v", err)
		return &TelegramNotifier{}
	}

	logrus.Infof("telegram notifier connected as @%s", bot.Self.UserName)
	return &TelegramNotifier{Bot: bot, ChatID: chatID}
}

// NotifyHandoff sends the waiting-conversation alert. Failures are logged
// and swallowed: losing an alert must never fail the webhook.
func (t *TelegramNotifier) NotifyHandoff(instance, conversationID, contactName, lastMessage string) {
	if t.Bot == nil {
		return
	}

	text := fmt.Sprintf("🔔 *Novo atendimento*\nInstância: %s\nCliente: %s (%s)\nMensagem: %s",
		instance, contactName, conversationID, lastMessage)
	msg := tgbotapi.NewMessage(t.ChatID, text)
	msg.ParseMode = "Markdown"

	if _, err := t.Bot.Send(msg); err != nil {
		logrus.WithFields(logrus.Fields{
			"instance":     instance,
			"conversation": conversationID,
		}).Warnf("handoff notification failed: %v", err)
	}
}
