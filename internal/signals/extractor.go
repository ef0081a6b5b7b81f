// internal/signals/extractor.go
package signals

import (
	"regexp"
	"strings"
)

// Signals are the lexical features extracted from one message, each in [0,1].
type Signals struct {
	TextComplexity   float64 `json:"textComplexity"`
	Urgency          float64 `json:"urgency"`
	TechnicalDensity float64 `json:"technicalDensity"`
	IntentClarity    float64 `json:"intentClarity"`
	SentimentScore   float64 `json:"sentimentScore"`
	BookingRelated   bool    `json:"bookingRelated"`
}

// Weights applied when collapsing signals into one complexity score.
const (
	weightText    = 0.3
	weightUrgency = 0.2
	weightTech    = 0.3
	weightClarity = 0.2
)

var (
	bookingPattern = regexp.MustCompile(`(?i)\b(book|appointment|schedule|available|when|time|today|tomorrow)\b`)
	urgencyPattern = regexp.MustCompile(`(?i)\b(urgent|asap|immediately|right now|emergency|quick)\b`)
	hedgePattern   = regexp.MustCompile(`(?i)\b(maybe|perhaps|not sure|thinking about|might|possibly)\b`)

	// Salon-domain terms that push a message toward the reasoning model.
	technicalTerms = []string{
		"allergy", "allergic", "reaction", "chemical", "keratin", "balayage",
		"color correction", "toner", "bleach", "peroxide", "refund",
		"complaint", "cancellation policy", "patch test", "ingredients",
	}
)

// Extractor derives routing signals from raw message text.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes all lexical signals for a message. Sentiment is taken
// from the caller-supplied label rather than re-classified here.
func (e *Extractor) Extract(message, sentiment string) Signals {
	words := strings.Fields(message)

	return Signals{
		TextComplexity:   textComplexity(message, words),
		Urgency:          urgencyScore(message),
		TechnicalDensity: technicalDensity(message, len(words)),
		IntentClarity:    intentClarity(message, words),
		SentimentScore:   sentimentScore(sentiment),
		BookingRelated:   bookingPattern.MatchString(message),
	}
}

// Overall collapses the signals into one complexity score. Low intent
// clarity raises complexity: a vague message takes more reasoning to answer.
func (s Signals) Overall() float64 {
	score := s.TextComplexity*weightText +
		s.Urgency*weightUrgency +
		s.TechnicalDensity*weightTech +
		(1-s.IntentClarity)*weightClarity
	return clamp01(score)
}

// IsBookingRelated reports whether the message matches the booking lexicon.
func IsBookingRelated(message string) bool {
	return bookingPattern.MatchString(message)
}

func textComplexity(message string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}

	var score float64
	switch {
	case len(words) >= 80:
		score = 0.9
	case len(words) >= 40:
		score = 0.7
	case len(words) >= 15:
		score = 0.45
	default:
		score = 0.2
	}

	// Long sentences and multiple clauses read as harder requests.
	sentences := strings.Count(message, ".") + strings.Count(message, "?") + strings.Count(message, "!")
	if sentences >= 4 {
		score += 0.1
	}
	if strings.Count(message, ",") >= 3 {
		score += 0.05
	}

	return clamp01(score)
}

func urgencyScore(message string) float64 {
	score := 0.2
	if urgencyPattern.MatchString(message) {
		score = 0.85
	}
	if strings.Contains(message, "!!") {
		score += 0.1
	}
	return clamp01(score)
}

func technicalDensity(message string, wordCount int) float64 {
	if wordCount == 0 {
		return 0
	}
	lower := strings.ToLower(message)
	hits := 0
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	switch {
	case hits >= 3:
		return 0.9
	case hits == 2:
		return 0.65
	case hits == 1:
		return 0.4
	}
	return 0.1
}

func intentClarity(message string, words []string) float64 {
	score := 0.5
	if bookingPattern.MatchString(message) {
		score += 0.3
	}
	if strings.Contains(message, "?") {
		score += 0.1
	}
	if hedgePattern.MatchString(message) {
		score -= 0.3
	}
	// Rambling messages rarely carry a single clear intent.
	if len(words) > 60 {
		score -= 0.2
	}
	return clamp01(score)
}

func sentimentScore(sentiment string) float64 {
	switch sentiment {
	case "positive":
		return 0.9
	case "neutral":
		return 0.5
	case "negative":
		return 0.1
	default:
		return 0.5
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
