package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/alejandrodnm/sharpbot/internal/domain"
)

// Telegram implementa ports.Notifier mandando mensajes Markdown a un chat
// fijo. Solo emite: no escucha comandos, el control del bot es por config.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram conecta el bot y valida el token contra el API.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify.NewTelegram: %w", err)
	}
	slog.Info("Bot de Telegram conectado", "username", api.Self.UserName)
	return &Telegram{api: api, chatID: chatID}, nil
}

// BetPlaced anuncia una apuesta nueva o una acumulación.
func (t *Telegram) BetPlaced(_ context.Context, pos domain.Position, rationale string) error {
	text := fmt.Sprintf(`🎯 *BET PLACED*

*%s*
Side: %s
Size: %.1f sh @ %.3f ($%.2f)
Edge: %+.1f%%

_%s_`,
		escapeMarkdown(pos.Matchup()),
		escapeMarkdown(pos.Outcome),
		pos.Shares, pos.AvgPrice, pos.CostBasis,
		pos.EntryEdge*100,
		escapeMarkdown(rationale),
	)
	return t.send(text)
}

// BetSold anuncia una venta anticipada.
func (t *Telegram) BetSold(_ context.Context, pos domain.Position, rationale string) error {
	emoji := "💰"
	if pos.Profit < 0 {
		emoji = "📉"
	}
	text := fmt.Sprintf(`%s *SOLD*

*%s*
Side: %s
Exit: %.1f sh @ %.3f
P&L: $%+.2f

_%s_`,
		emoji,
		escapeMarkdown(pos.Matchup()),
		escapeMarkdown(pos.Outcome),
		pos.Shares, pos.ExitPrice,
		pos.Profit,
		escapeMarkdown(rationale),
	)
	return t.send(text)
}

// BetResolved anuncia la resolución de un mercado.
func (t *Telegram) BetResolved(_ context.Context, pos domain.Position) error {
	verdict := "✅ *WON*"
	if pos.Status == domain.StatusLost {
		verdict = "❌ *LOST*"
	}
	text := fmt.Sprintf(`%s

*%s*
Side: %s
P&L: $%+.2f`,
		verdict,
		escapeMarkdown(pos.Matchup()),
		escapeMarkdown(pos.Outcome),
		pos.Profit,
	)
	return t.send(text)
}

// CycleSummary manda el resumen solo cuando el ciclo colocó apuestas.
// Un resumen por poll sería spam; los ciclos sin acción se quedan en la
// consola y las métricas.
func (t *Telegram) CycleSummary(_ context.Context, r domain.CycleReport) error {
	if r.Placed == 0 {
		return nil
	}
	text := fmt.Sprintf(`📊 *Cycle summary*

Bets placed: %d
Candidates: %d
Open positions: %d
Exposure: $%.2f
Balance: $%.2f`,
		r.Placed, len(r.Candidates), len(r.Open), r.Exposure, r.Balance,
	)
	return t.send(text)
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("notify.Telegram: send: %w", err)
	}
	return nil
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
