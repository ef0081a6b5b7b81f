// internal/analytics/sink.go
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"salon-workers/internal/common/logger"
	"salon-workers/internal/common/metrics"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
)

// DecisionEvent is one routing or timing decision, recorded for reporting.
type DecisionEvent struct {
	EventID        string                 `json:"eventId"`
	Engine         string                 `json:"engine"`
	SalonID        string                 `json:"salonId"`
	ConversationID string                 `json:"conversationId,omitempty"`
	Outcome        string                 `json:"outcome"`
	Model          string                 `json:"model,omitempty"`
	Confidence     float64                `json:"confidence,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// Sink writes decision events to Elasticsearch. Writes are best-effort: a
// failed write is logged and counted but never surfaces to the decision path.
type Sink struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewSink(client *elasticsearch.Client, index string, log logger.Logger) *Sink {
	return &Sink{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "analytics-sink"}),
	}
}

// Record indexes the event. EventID and Timestamp are filled in when empty.
func (s *Sink) Record(ctx context.Context, event DecisionEvent) {
	if s == nil || s.client == nil {
		return
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.fail(event, err.Error())
		return
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.EventID,
		Body:       bytes.NewReader(body),
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		s.fail(event, err.Error())
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		s.fail(event, res.String())
	}
}

func (s *Sink) fail(event DecisionEvent, reason string) {
	metrics.AnalyticsWriteFailures.Inc()
	s.logger.Warn("analytics write failed", map[string]interface{}{
		"engine":  event.Engine,
		"salonId": event.SalonID,
		"outcome": event.Outcome,
		"reason":  reason,
	})
}
