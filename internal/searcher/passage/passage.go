// Package passage extracts focused text windows around query-term matches
// and computes the proximity bonus used for reranking.
package passage

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/groundbot/retrieval/internal/indexer/tokenizer"
)

// Window sizes a passage in characters. Overlap is the slack kept before
// the earliest match so the hit does not sit at the very edge.
type Window struct {
	Chars   int
	Overlap int
}

// missing marks a query term with no occurrence in the passage.
const missing = 1 << 30

// Extract picks a window of w.Chars around the earliest case-insensitive
// occurrence of any query token in text, starting Overlap characters
// before the hit. When no token occurs, the first window is returned.
// Start and end are byte offsets into the original text; the returned
// passage is the trimmed slice between them.
func Extract(text string, queryTokens []string, w Window) (int, int, string) {
	if text == "" {
		return 0, 0, ""
	}

	low := tokenizer.ASCIILower(text)
	earliest := -1
	for _, qt := range queryTokens {
		if qt == "" {
			continue
		}
		if i := strings.Index(low, qt); i >= 0 && (earliest < 0 || i < earliest) {
			earliest = i
		}
	}

	var start, end int
	if earliest >= 0 {
		start = earliest - w.Overlap
		if start < 0 {
			start = 0
		}
		end = start + w.Chars
	} else {
		start = 0
		end = w.Chars
	}
	if end > len(text) {
		end = len(text)
	}
	return start, end, strings.TrimSpace(text[start:end])
}

// Snippet shortens text to at most maxChars characters, backing off to a
// rune boundary and appending an ellipsis when truncated.
func Snippet(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.TrimRight(text[:cut], " \t\n\r") + "…"
}

// ProximityBonus rewards passages whose query terms cluster tightly. Each
// unique query term contributes its first word position (terms that do not
// occur count as maximally distant); the bonus decays linearly with the
// mean absolute distance to the median position, from maxBonus at distance
// zero down to zero at distanceCap. The result is never negative, so the
// bonus can only improve a passage's score.
func ProximityBonus(text string, queryTokens []string, maxBonus, distanceCap float64) float64 {
	if maxBonus <= 0 || text == "" || len(queryTokens) == 0 {
		return 0
	}
	if distanceCap <= 0 {
		distanceCap = 10
	}

	unique := make([]string, 0, len(queryTokens))
	seen := make(map[string]bool, len(queryTokens))
	for _, t := range queryTokens {
		if t != "" && !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	if len(unique) == 0 {
		return 0
	}

	firstPos := make(map[string]int, len(unique))
	for i, w := range tokenizer.Tokenize(text) {
		if seen[w] {
			if _, ok := firstPos[w]; !ok {
				firstPos[w] = i
			}
		}
	}
	if len(firstPos) == 0 {
		return 0
	}

	reps := make([]int, 0, len(unique))
	found := make([]int, 0, len(firstPos))
	for _, t := range unique {
		if p, ok := firstPos[t]; ok {
			reps = append(reps, p)
			found = append(found, p)
		} else {
			reps = append(reps, missing)
		}
	}
	sort.Ints(found)
	median := found[len(found)/2]

	var sum float64
	for _, p := range reps {
		if p == missing {
			p = median
		}
		d := p - median
		if d < 0 {
			d = -d
		}
		sum += float64(d)
	}
	avg := sum / float64(len(reps))
	if avg > distanceCap {
		avg = distanceCap
	}
	bonus := maxBonus * (1 - avg/distanceCap)
	if bonus < 0 {
		return 0
	}
	return bonus
}
