package analysis

import "care-conversations-go/internal/types"

var emotionOrder = []string{"happy", "sad", "angry", "fearful", "surprised", "neutral"}

var emotionKeywords = map[string][]string{
	"happy": {"happy", "glad", "joy", "wonderful", "great", "laugh",
		"laughed", "smile", "love", "excited", "fun"},
	"sad": {"sad", "cry", "cried", "miss", "missed", "lonely",
		"unhappy", "tears", "grief"},
	"angry": {"angry", "mad", "furious", "annoyed", "upset",
		"frustrated"},
	"fearful": {"afraid", "scared", "worried", "anxious", "fear",
		"nervous", "panic"},
	"surprised": {"surprised", "wow", "amazing", "unexpected",
		"shocked", "unbelievable"},
	"neutral": {"okay", "fine", "alright"},
}

// defaultNeutralConfidence is emitted when no emotion keyword matches at
// all; an explicit default rather than a computed value.
const defaultNeutralConfidence = 0.8

// DetectEmotions counts emotion-keyword occurrences per emotion and maps
// each matched emotion to confidence min(1, count/5). Output order
// follows the fixed emotion table order for determinism.
func DetectEmotions(text string) []types.EmotionScore {
	counts := map[string]int{}
	tokens := Tokenize(text)
	occur := map[string]int{}
	for _, tok := range tokens {
		occur[tok]++
	}
	for emotion, kws := range emotionKeywords {
		for _, kw := range kws {
			counts[emotion] += occur[kw]
		}
	}

	var out []types.EmotionScore
	for _, emotion := range emotionOrder {
		n := counts[emotion]
		if n == 0 {
			continue
		}
		conf := float64(n) / 5.0
		if conf > 1.0 {
			conf = 1.0
		}
		out = append(out, types.EmotionScore{Emotion: emotion, Confidence: conf})
	}
	if len(out) == 0 {
		return []types.EmotionScore{{Emotion: "neutral", Confidence: defaultNeutralConfidence}}
	}
	return out
}
