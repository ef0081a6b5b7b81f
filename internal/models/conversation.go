// internal/models/conversation.go
package models

import "time"

// Sentiment labels attached to a conversation by the upstream classifier.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
	SentimentUnknown  = "unknown"
)

// Customer urgency levels supplied by the caller.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
	UrgencyUrgent = "urgent"
)

// Conversation channels.
const (
	ChannelWhatsApp  = "whatsapp"
	ChannelInstagram = "instagram"
	ChannelVoice     = "voice"
)

// ConversationContext describes the conversation a decision is being made
// for. It is supplied per call and never persisted by the engine.
type ConversationContext struct {
	ConversationID     string     `json:"conversationId"`
	SalonID            string     `json:"salonId"`
	CustomerID         string     `json:"customerId"`
	Channel            string     `json:"channel"`
	Status             string     `json:"status"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
	MessageCount       int        `json:"messageCount"`
	Sentiment          string     `json:"sentiment"`
	DetectedIntent     string     `json:"detectedIntent,omitempty"`
	BookingProbability float64    `json:"bookingProbability"`
}

// ValidSentiment reports whether s is one of the known sentiment labels.
func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentUnknown:
		return true
	}
	return false
}

// ValidUrgency reports whether u is one of the known urgency levels.
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}
