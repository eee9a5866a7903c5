package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/pkg/logger"
)

// OpsNotifier delivers system-level alerts to a single operations
// chat. Its only sender is the opportunity scan (Engine.emitOpportunity);
// breaker trips and kill-switch activations are logged but not sent
// through it. Unlike the teacher's per-user Telegram bot this is not a
// user-facing channel — there is no per-user chat ID lookup, only the
// one configured ops chat (§4.8).
//
// Adapted from internal/adapters/telegram/notifier.go, dropping its
// UserRepository lookup and template manager since every message here
// goes to the same fixed audience.
type OpsNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewOpsNotifier returns nil, nil when Telegram isn't configured so
// callers can treat a nil *OpsNotifier as "disabled" without branching
// on cfg.Enabled() themselves.
func NewOpsNotifier(cfg config.TelegramConfig) (*OpsNotifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot api: %w", err)
	}
	bot.Debug = false
	logger.Info("ops notifier initialized", zap.String("bot_username", bot.Self.UserName))
	return &OpsNotifier{api: bot, chatID: cfg.ChatID}, nil
}

// NotifyCritical sends a plain-text message to the ops chat, logging
// (rather than propagating) delivery failures — an ops channel outage
// must never block the caller's own critical-path work.
func (n *OpsNotifier) NotifyCritical(ctx context.Context, message string) {
	if n == nil {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, message)
	if _, err := n.api.Send(msg); err != nil {
		logger.Warn("failed to deliver ops notification", zap.Error(err))
	}
}
