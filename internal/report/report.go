// Package report renders the end-of-run statistics and optionally
// delivers them to an operator chat over the Bot API.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"reposter-bot/internal/locales"
	"reposter-bot/internal/pipeline"
	"reposter-bot/pkg/telegoapi"
)

// modelNameLimit truncates long model identifiers in the report.
const modelNameLimit = 30

// Reporter formats run statistics. The bot is optional; with a nil bot
// the report only goes to the local log.
type Reporter struct {
	bot       telegoapi.BotAPI
	chatID    int64
	localizer *i18n.Localizer
}

// New creates a reporter. Pass a nil bot to disable chat delivery.
func New(bot telegoapi.BotAPI, chatID int64, localizer *i18n.Localizer) *Reporter {
	return &Reporter{bot: bot, chatID: chatID, localizer: localizer}
}

// Render produces the localized multi-line report text.
func (r *Reporter) Render(stats *pipeline.Stats, historyTotal int) string {
	var b strings.Builder

	line := func(msgID string, data map[string]interface{}) {
		b.WriteString(locales.GetMessage(r.localizer, msgID, data))
		b.WriteByte('\n')
	}

	line("ReportHeader", nil)
	line("ReportElapsed", map[string]interface{}{"Seconds": fmt.Sprintf("%.2f", stats.Elapsed().Seconds())})
	line("ReportProcessed", map[string]interface{}{"Count": stats.TotalProcessed})
	line("ReportSent", map[string]interface{}{"Count": stats.Sent})
	line("ReportSkipped", map[string]interface{}{"Count": stats.Skipped})
	line("ReportFallback", map[string]interface{}{"Count": stats.Fallback})
	line("ReportErrors", map[string]interface{}{"Count": stats.Errors})
	line("ReportTokens", map[string]interface{}{"Count": stats.TokensUsed})
	line("ReportHistoryTotal", map[string]interface{}{"Count": historyTotal})

	if len(stats.ModelsUsed) > 0 {
		b.WriteByte('\n')
		line("ReportModelsHeader", nil)

		models := make([]string, 0, len(stats.ModelsUsed))
		for model := range stats.ModelsUsed {
			models = append(models, model)
		}
		sort.Strings(models)
		for _, model := range models {
			line("ReportModelLine", map[string]interface{}{
				"Model": shortenModelName(model),
				"Count": stats.ModelsUsed[model],
			})
		}
	}

	b.WriteByte('\n')
	b.WriteString(locales.GetMessage(r.localizer, "ReportDone", nil))
	return b.String()
}

// Publish prints the report to the log and, when a bot is configured,
// sends it to the operator chat. Delivery failures are logged only;
// reporting never fails the run.
func (r *Reporter) Publish(ctx context.Context, stats *pipeline.Stats, historyTotal int) {
	text := r.Render(stats, historyTotal)

	log.Printf("\n%s\n%s\n%s", strings.Repeat("=", 60), text, strings.Repeat("=", 60))

	if r.bot == nil {
		return
	}
	if _, err := r.bot.SendMessage(ctx, tu.Message(tu.ID(r.chatID), text)); err != nil {
		log.Printf("[Report] Failed to deliver report to chat %d: %v", r.chatID, err)
	}
}

// shortenModelName trims provider prefixes and over-long identifiers,
// e.g. "meta-llama/Llama-3.3-70B-Instruct".
func shortenModelName(model string) string {
	if idx := strings.LastIndex(model, "/"); idx >= 0 && len(model) > modelNameLimit {
		model = model[idx+1:]
	}
	if len(model) > modelNameLimit {
		model = model[:modelNameLimit] + "..."
	}
	return model
}
