package analysis

import (
	"fmt"
	"sort"
	"strings"

	"care-conversations-go/internal/types"
)

// Summarize is the rule-based summarization path used when no model tier
// is available. It is a pure function of its inputs.
func Summarize(transcript, personName string, durationSeconds float64) types.SummaryResult {
	score, sentiment := ScoreSentiment(transcript)
	topics := DetectTopics(transcript)

	who := personName
	if who == "" {
		who = "an unidentified person"
	}
	summary := fmt.Sprintf(
		"Conversation with %s lasting about %d seconds. Topics discussed: %s. Overall tone was %s.",
		who, int(durationSeconds), strings.Join(topics, ", "), sentiment)

	return types.SummaryResult{
		Summary:          summary,
		KeyTopics:        topics,
		Sentiment:        sentiment,
		SentimentScore:   score,
		ImportantDetails: []string{},
		ActionItems:      []string{},
	}
}

// SummarizeDay aggregates several records for one user/day without
// narrative generation: it lists the distinct people spoken with and the
// distinct topics, both sorted for stable output.
func SummarizeDay(records []types.ConversationRecord) string {
	if len(records) == 0 {
		return "No conversations were recorded today."
	}

	var people, topics []string
	seenPerson := map[string]bool{}
	seenTopic := map[string]bool{}
	for _, rec := range records {
		if rec.PersonName != "" && !seenPerson[rec.PersonName] {
			seenPerson[rec.PersonName] = true
			people = append(people, rec.PersonName)
		}
		for _, t := range rec.KeyTopics {
			if !seenTopic[t] {
				seenTopic[t] = true
				topics = append(topics, t)
			}
		}
	}
	sort.Strings(people)
	sort.Strings(topics)

	var b strings.Builder
	fmt.Fprintf(&b, "Today there were %d conversations", len(records))
	if len(people) > 0 {
		fmt.Fprintf(&b, " with %s", strings.Join(people, ", "))
	}
	b.WriteString(".")
	if len(topics) > 0 {
		fmt.Fprintf(&b, " Topics included: %s.", strings.Join(topics, ", "))
	}
	return b.String()
}
