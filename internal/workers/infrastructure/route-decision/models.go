// internal/workers/infrastructure/route-decision/models.go
package routedecision

// Route labels explaining why a channel was chosen.
const (
	RouteSelectedModel  = "selected_model"
	RouteBudgetExceeded = "budget_exceeded"
	RouteError          = "error"
)

type Output struct {
	OutputChannel string `json:"output_channel"`
	Route         string `json:"route"`
	Model         string `json:"model,omitempty"`
}
