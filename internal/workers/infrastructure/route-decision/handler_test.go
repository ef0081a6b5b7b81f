package routedecision

import (
	"context"
	"testing"

	"salon-workers/internal/common/logger"
	"salon-workers/pkg/catalog"

	"github.com/stretchr/testify/assert"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	return NewHandler(LoadConfig(), catalog.Default(), logger.NewTestLogger(t))
}

func TestRouteSelectedModels(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		model   string
		channel string
	}{
		{catalog.ModelFastChat, catalog.ChannelFastModel},
		{catalog.ModelReasoning, catalog.ChannelReasoningModel},
		{catalog.ModelVoice, catalog.ChannelVoice},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			out := h.Execute(context.Background(), map[string]interface{}{
				"routing_decision": "model_selected",
				"selected_model":   tt.model,
				"confidence":       0.9,
			})

			assert.Equal(t, tt.channel, out.OutputChannel)
			assert.Equal(t, RouteSelectedModel, out.Route)
			assert.Equal(t, tt.model, out.Model)
		})
	}
}

func TestRouteBudgetExceededToDefault(t *testing.T) {
	h := newTestHandler(t)

	out := h.Execute(context.Background(), map[string]interface{}{
		"routing_decision": "budget_exceeded",
		"selected_model":   "none",
	})

	assert.Equal(t, catalog.ChannelDefault, out.OutputChannel)
	assert.Equal(t, RouteBudgetExceeded, out.Route)
}

func TestRouteErrorPayloadToDefault(t *testing.T) {
	h := newTestHandler(t)

	out := h.Execute(context.Background(), map[string]interface{}{
		"error":         true,
		"error_code":    "VALIDATION_FAILED",
		"error_message": "Request input validation failed",
	})

	assert.Equal(t, catalog.ChannelDefault, out.OutputChannel)
	assert.Equal(t, RouteError, out.Route)
}

func TestRouteUnknownModelToDefault(t *testing.T) {
	h := newTestHandler(t)

	out := h.Execute(context.Background(), map[string]interface{}{
		"routing_decision": "model_selected",
		"selected_model":   "model-nobody-knows",
	})

	assert.Equal(t, catalog.ChannelDefault, out.OutputChannel)
	assert.Equal(t, RouteError, out.Route)
}

func TestRouteMalformedEnvelopeToDefault(t *testing.T) {
	h := newTestHandler(t)

	tests := map[string]map[string]interface{}{
		"empty":            {},
		"bad decision":     {"routing_decision": "maybe", "selected_model": "gpt-4o"},
		"confidence range": {"routing_decision": "model_selected", "selected_model": "gpt-4o", "confidence": 1.5},
		"partial error":    {"error": true},
	}

	for name, envelope := range tests {
		t.Run(name, func(t *testing.T) {
			out := h.Execute(context.Background(), envelope)
			assert.Equal(t, catalog.ChannelDefault, out.OutputChannel)
			assert.Equal(t, RouteError, out.Route)
		})
	}
}
