package analysis

import "sort"

const maxKeywords = 10

// ExtractKeywords returns the top 10 tokens longer than three characters
// by descending frequency. Ties break by first occurrence in the text,
// never by map iteration order.
func ExtractKeywords(text string) []string {
	counts := map[string]int{}
	firstSeen := map[string]int{}
	var order []string

	for i, tok := range Tokenize(text) {
		if len(tok) <= 3 {
			continue
		}
		if _, seen := counts[tok]; !seen {
			firstSeen[tok] = i
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if counts[order[i]] != counts[order[j]] {
			return counts[order[i]] > counts[order[j]]
		}
		return firstSeen[order[i]] < firstSeen[order[j]]
	})

	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}
