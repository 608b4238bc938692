package analysis

import "care-conversations-go/internal/types"

var positiveWords = map[string]bool{
	"good": true, "great": true, "wonderful": true, "happy": true,
	"love": true, "loved": true, "nice": true, "enjoy": true,
	"enjoyed": true, "beautiful": true, "excellent": true,
	"amazing": true, "glad": true, "fun": true, "laugh": true,
	"laughed": true, "smile": true, "pleasant": true, "lovely": true,
	"better": true, "best": true, "delicious": true,
}

var negativeWords = map[string]bool{
	"bad": true, "terrible": true, "sad": true, "angry": true,
	"hate": true, "hated": true, "awful": true, "horrible": true,
	"worried": true, "pain": true, "hurt": true, "lonely": true,
	"upset": true, "afraid": true, "scared": true, "cry": true,
	"cried": true, "worse": true, "worst": true, "tired": true,
	"confused": true, "frustrated": true,
}

// ScoreSentiment scans the transcript tokens against fixed word lists:
// +0.1 per positive hit, -0.1 per negative hit. Accumulation is
// unbounded and clamped to [-1, 1] once at the end; clamping per hit
// would change results for transcripts with many sentiment words.
func ScoreSentiment(text string) (score float64, sentiment string) {
	for _, tok := range Tokenize(text) {
		if positiveWords[tok] {
			score += 0.1
		}
		if negativeWords[tok] {
			score -= 0.1
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < -1.0 {
		score = -1.0
	}
	switch {
	case score > 0.1:
		sentiment = types.SentimentPositive
	case score < -0.1:
		sentiment = types.SentimentNegative
	default:
		sentiment = types.SentimentNeutral
	}
	return score, sentiment
}
