package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"product-content-ai/internal/config"
	"product-content-ai/internal/domain/model"
	"product-content-ai/internal/domain/ports/adapter"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ adapter.RunNotifier = (*RunNotifier)(nil)

// RunNotifier posts a run summary to one chat.
type RunNotifier struct {
	sender Sender
	chatID int64
	log    *zerolog.Logger
}

func NewRunNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*RunNotifier, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewRunNotifierWithSender(bot, cfg.ChatID, logger), nil
}

func NewRunNotifierWithSender(sender Sender, chatID int64, logger *zerolog.Logger) *RunNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RunNotifier{sender: sender, chatID: chatID, log: logger}
}

func (n *RunNotifier) RunFinished(ctx context.Context, run *model.RunState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatRunSummary(run))
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	n.log.Debug().Str("run_id", run.ID).Int64("chat_id", n.chatID).Msg("run summary sent")
	return nil
}

const maxListedFailures = 10

// FormatRunSummary renders the plain-text message for a finished run.
func FormatRunSummary(run *model.RunState) string {
	counts := run.Counts()
	var b strings.Builder
	status := "finished"
	if run.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(&b, "Run %s %s\n", run.ID, status)
	fmt.Fprintf(&b, "Published: %s  Failed: %s  Skipped: %s\n",
		humanize.Comma(int64(counts[model.OutcomePublished])),
		humanize.Comma(int64(counts[model.OutcomeFailed])),
		humanize.Comma(int64(counts[model.OutcomeSkipped])))
	fmt.Fprintf(&b, "Spent: %s of %s\n", model.FormatMicros(run.CommittedMicros), model.FormatMicros(run.Limits.MaxPerRunMicros))
	if !run.StartedAt.IsZero() && run.Finished() {
		fmt.Fprintf(&b, "Took: %s\n", strings.TrimSpace(humanize.RelTime(run.StartedAt, run.FinishedAt, "", "")))
	}
	if len(run.DisabledProviders) > 0 {
		fmt.Fprintf(&b, "Disabled providers: %s\n", strings.Join(run.DisabledProviders, ", "))
	}

	var failed []model.ItemOutcome
	for _, o := range run.Outcomes {
		if o.Outcome == model.OutcomeFailed {
			failed = append(failed, o)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Slug < failed[j].Slug })
	for i, o := range failed {
		if i == maxListedFailures {
			fmt.Fprintf(&b, "... and %d more\n", len(failed)-maxListedFailures)
			break
		}
		fmt.Fprintf(&b, "- %s: %s\n", o.Slug, o.ErrorKind)
	}
	return strings.TrimRight(b.String(), "\n")
}
