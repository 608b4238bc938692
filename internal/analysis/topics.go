package analysis

// topicOrder fixes the scan order so detected topics come back in a
// stable sequence regardless of map iteration.
var topicOrder = []string{"family", "health", "food", "weather", "travel", "work"}

var topicKeywords = map[string][]string{
	"family": {"family", "mother", "father", "mom", "dad", "daughter",
		"son", "sister", "brother", "grandchildren", "grandson",
		"granddaughter", "wife", "husband", "cousin"},
	"health": {"doctor", "medicine", "hospital", "pain", "appointment",
		"pills", "nurse", "health", "therapy", "checkup"},
	"food": {"lunch", "dinner", "breakfast", "eat", "food", "cooking",
		"recipe", "meal", "tea", "coffee"},
	"weather": {"weather", "rain", "sunny", "cold", "warm", "snow",
		"wind", "storm"},
	"travel": {"trip", "travel", "visit", "vacation", "drive", "flight",
		"holiday", "beach"},
	"work": {"work", "job", "office", "retired", "career", "business",
		"colleague"},
}

// DetectTopics matches transcript tokens against the fixed topic table.
// A transcript matching nothing yields the single topic "general".
func DetectTopics(text string) []string {
	present := map[string]bool{}
	for _, tok := range Tokenize(text) {
		present[tok] = true
	}

	var topics []string
	for _, topic := range topicOrder {
		for _, kw := range topicKeywords[topic] {
			if present[kw] {
				topics = append(topics, topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		return []string{"general"}
	}
	return topics
}
