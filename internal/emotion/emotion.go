// Package emotion defines the classifier's label set and result types.
package emotion

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tag is an emotion label. Labels outside the known set are carried as-is.
type Tag string

const (
	Sad      Tag = "sad"
	Disgust  Tag = "disgust"
	Angry    Tag = "angry"
	Neutral  Tag = "neutral"
	Fear     Tag = "fear"
	Surprise Tag = "surprise"
	Happy    Tag = "happy"
)

// Known lists the closed label set in the classifier's output order.
var Known = []Tag{Sad, Disgust, Angry, Neutral, Fear, Surprise, Happy}

// IsKnown reports whether t belongs to the closed label set.
func (t Tag) IsKnown() bool {
	for _, k := range Known {
		if t == k {
			return true
		}
	}
	return false
}

// ParseTag normalizes a raw model label ("Happy", " SURPRISE ", "Überrascht")
// to lower-case ASCII without diacritics. Unknown labels are kept, not rejected.
func ParseTag(label string) Tag {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	clean, _, _ := transform.String(t, label)
	return Tag(strings.ToLower(strings.TrimSpace(clean)))
}

// Prediction is one label/score pair from the classifier.
type Prediction struct {
	Label Tag     `json:"label" msgpack:"label"`
	Score float64 `json:"score" msgpack:"score"`
}

// Result is the classifier output, best first.
type Result []Prediction

// Top returns the first prediction. ok is false for an empty result.
func (r Result) Top() (Prediction, bool) {
	if len(r) == 0 {
		return Prediction{}, false
	}
	return r[0], true
}

// RoundScore rounds a score to the given number of decimal places.
func RoundScore(score float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(score*p) / p
}
