package chat

import (
	"context"
	"fmt"
	"strings"

	"aiaudit/internal/session"
)

// SummaryFallback is returned when the provider cannot produce a summary.
const SummaryFallback = "无法生成AI总结，请稍后重试。"

const summaryPrompt = "Analyze the following student interaction log and provide a one-sentence academic summary in Chinese: %s"

// Summarize asks p for a one-sentence summary of the interaction log.
// It never fails: provider errors and empty replies yield SummaryFallback.
func Summarize(ctx context.Context, p Provider, exchanges []session.ChatExchange) string {
	text, err := p.Reply(ctx, nil, fmt.Sprintf(summaryPrompt, InteractionLog(exchanges)))
	if err != nil {
		return SummaryFallback
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return SummaryFallback
	}
	return text
}

// InteractionLog renders exchanges one per line as "ROLE: text".
func InteractionLog(exchanges []session.ChatExchange) string {
	var b strings.Builder
	for i, c := range exchanges {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(c.Role))
		b.WriteString(": ")
		b.WriteString(strings.Join(strings.Fields(c.Text), " "))
	}
	return b.String()
}
