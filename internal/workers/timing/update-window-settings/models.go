// internal/workers/timing/update-window-settings/models.go
package updatewindowsettings

import (
	"salon-workers/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const OperationUpdateServiceWindow = "update_service_window"

type Input struct {
	SalonID   string                       `json:"salonId"`
	Operation string                       `json:"operation,omitempty"`
	Settings  models.ServiceWindowSettings `json:"serviceWindowSettings"`
}

// Validate applies the numeric bounds on the new settings, reporting every
// violated field at once.
func (in *Input) Validate() error {
	if err := validation.ValidateStruct(in,
		validation.Field(&in.SalonID, validation.Required),
	); err != nil {
		return err
	}

	// Required is deliberate on the first three fields: ozzo threshold
	// rules skip zero values, and zero violates each of these bounds.
	return validation.ValidateStruct(&in.Settings,
		validation.Field(&in.Settings.CostThreshold,
			validation.Required.Error("cost threshold must be at least 0.01"),
			validation.Min(0.01).Error("cost threshold must be at least 0.01")),
		validation.Field(&in.Settings.TemplateCost,
			validation.Required.Error("template cost must be greater than 0"),
			validation.Min(0.0).Exclusive().Error("template cost must be greater than 0")),
		validation.Field(&in.Settings.FreeWindowHours,
			validation.Required.Error("free window must be at least 1 hour"),
			validation.Min(1.0).Error("free window must be at least 1 hour")),
		validation.Field(&in.Settings.MaxOptimizationPercent,
			validation.Min(0.0).Error("optimization percentage must be at least 0"),
			validation.Max(100.0).Error("optimization percentage must be at most 100")),
	)
}

type Output struct {
	Updated        bool                         `json:"updated"`
	OldSettings    models.ServiceWindowSettings `json:"old_settings"`
	NewSettings    models.ServiceWindowSettings `json:"new_settings"`
	ImpactEstimate string                       `json:"impact_estimate"`
}
