// internal/workers/infrastructure/route-decision/handler.go
package routedecision

import (
	"context"
	"encoding/json"
	"fmt"

	"salon-workers/internal/common/logger"
	"salon-workers/pkg/catalog"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "route-decision"

// envelopeSchema accepts either a routing decision or the structured error
// payload. Anything else is malformed and falls to the default channel.
var envelopeSchema = map[string]interface{}{
	"type": "object",
	"oneOf": []interface{}{
		map[string]interface{}{
			"required": []interface{}{"routing_decision", "selected_model"},
			"properties": map[string]interface{}{
				"routing_decision": map[string]interface{}{
					"type": "string",
					"enum": []interface{}{"model_selected", "budget_exceeded"},
				},
				"selected_model": map[string]interface{}{"type": "string"},
				"confidence": map[string]interface{}{
					"type":    "number",
					"minimum": 0,
					"maximum": 1,
				},
			},
		},
		map[string]interface{}{
			"required": []interface{}{"error", "error_code", "error_message"},
			"properties": map[string]interface{}{
				"error":         map[string]interface{}{"enum": []interface{}{true}},
				"error_code":    map[string]interface{}{"type": "string"},
				"error_message": map[string]interface{}{"type": "string"},
			},
		},
	},
}

type Handler struct {
	config  *Config
	catalog *catalog.Catalog
	logger  logger.Logger
}

func NewHandler(config *Config, cat *catalog.Catalog, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		catalog: cat,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var envelope map[string]interface{}
	if err := json.Unmarshal([]byte(job.Variables), &envelope); err != nil {
		h.completeJob(ctx, client, job, &Output{
			OutputChannel: catalog.ChannelDefault,
			Route:         RouteError,
		})
		return
	}

	output := h.Execute(ctx, envelope)
	h.completeJob(ctx, client, job, output)
}

// Execute maps a decision envelope onto the workflow output channel. It
// never fails: malformed envelopes route to the default channel.
func (h *Handler) Execute(_ context.Context, envelope map[string]interface{}) *Output {
	if err := h.validateEnvelope(envelope); err != nil {
		h.logger.Warn("malformed decision envelope, routing to default channel", map[string]interface{}{
			"error": err.Error(),
		})
		return &Output{OutputChannel: catalog.ChannelDefault, Route: RouteError}
	}

	if isError, _ := envelope["error"].(bool); isError {
		return &Output{OutputChannel: catalog.ChannelDefault, Route: RouteError}
	}

	decision, _ := envelope["routing_decision"].(string)
	model, _ := envelope["selected_model"].(string)

	if decision != "model_selected" || model == "" || model == "none" {
		return &Output{OutputChannel: catalog.ChannelDefault, Route: RouteBudgetExceeded}
	}

	channel := h.catalog.Channel(model)
	route := RouteSelectedModel
	if channel == catalog.ChannelDefault {
		// unknown model identifier: deliverable only on the default path
		route = RouteError
	}

	return &Output{
		OutputChannel: channel,
		Route:         route,
		Model:         model,
	}
}

func (h *Handler) validateEnvelope(envelope map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(envelopeSchema)
	documentLoader := gojsonschema.NewGoLoader(envelope)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("envelope validation failed: %v", errs)
	}

	return nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}
