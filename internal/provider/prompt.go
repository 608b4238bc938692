package provider

import (
	"fmt"
	"strings"

	"care-conversations-go/internal/types"
)

// buildSummaryPrompt embeds the speaker context and transcript into the
// fixed instructional template sent to both model tiers.
func buildSummaryPrompt(transcript, personName string, durationSeconds float64) string {
	who := personName
	if who == "" {
		who = "an unknown person"
	}
	return fmt.Sprintf(`You are a caring assistant helping a person with memory difficulties review their conversations.

The user spoke with %s for about %d seconds.

Analyze this conversation transcript:
"""%s"""

Return ONLY a JSON object with keys:
summary (2-3 warm, simple sentences describing what was discussed),
key_topics (list of short topic words),
sentiment (positive|neutral|negative),
sentiment_score (number between -1.0 and 1.0),
important_details (list of facts worth remembering: names, dates, plans),
action_items (list of things the user agreed to do, empty if none).

Do not invent details that are not in the transcript.
Do not wrap the JSON in markdown fences.
`, who, int(durationSeconds), transcript)
}

// buildDailyPrompt aggregates one day's summaries for the narrative
// daily-summary variant.
func buildDailyPrompt(records []types.ConversationRecord) string {
	var b strings.Builder
	for i, rec := range records {
		fmt.Fprintf(&b, "%d. With %s: %s\n", i+1, rec.PersonName, rec.Summary)
	}
	return fmt.Sprintf(`You are a caring assistant helping a person with memory difficulties review their day.

Here are today's conversation summaries:
%s
Write one short, warm paragraph (3-4 sentences) telling the user who they spoke with today and what was discussed. Use plain language. Mention people by name. Return plain text only, no JSON, no markdown.
`, b.String())
}

// wrapRawSummary degrades an unparseable model response into a usable
// result inside the same call: truncated raw text, empty structured
// lists, neutral sentiment.
func wrapRawSummary(raw string) types.SummaryResult {
	const maxLen = 500
	raw = strings.TrimSpace(raw)
	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}
	return types.SummaryResult{
		Summary:          raw,
		KeyTopics:        []string{},
		Sentiment:        types.SentimentNeutral,
		SentimentScore:   0,
		ImportantDetails: []string{},
		ActionItems:      []string{},
	}
}
