package knowledge

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	conceptMinWordLength = 4
	conceptMinCount      = 2
	conceptTopN          = 10
	conceptContextRunes  = 100
)

// Concept is a frequent word pulled out of free text
type Concept struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
}

// ExtractConcepts returns up to ten words of at least four letters that
// occur twice or more, most frequent first. Confidence is count/10 capped at
// one. This is a frequency heuristic, not language understanding.
func ExtractConcepts(text string) []Concept {
	type tally struct {
		word  string
		count int
		first int
	}

	counts := map[string]*tally{}
	var order []*tally
	for i, word := range tokenize(text) {
		if t, ok := counts[word]; ok {
			t.count++
			continue
		}
		t := &tally{word: word, count: 1, first: i}
		counts[word] = t
		order = append(order, t)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})
	if len(order) > conceptTopN {
		order = order[:conceptTopN]
	}

	context := snippet(text, conceptContextRunes)
	concepts := []Concept{}
	for _, t := range order {
		if t.count < conceptMinCount {
			continue
		}
		concepts = append(concepts, Concept{
			Name:       t.word,
			Count:      t.count,
			Confidence: math.Min(float64(t.count)/10, 1.0),
			Context:    context,
		})
	}
	return concepts
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= conceptMinWordLength {
			words = append(words, f)
		}
	}
	return words
}

func snippet(text string, n int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}
