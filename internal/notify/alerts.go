// internal/notify/alerts.go
package notify

import (
	"context"
	"fmt"

	"salon-workers/internal/budget"
	"salon-workers/internal/common/config"
	"salon-workers/internal/common/logger"
	"salon-workers/internal/common/metrics"
	"salon-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// EmailSender sends a single email. Satisfied by the SES wrapper.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender publishes a single SMS message. Satisfied by the SNS wrapper.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// BudgetAlert describes a budget threshold breach for one salon.
type BudgetAlert struct {
	SalonID      string
	ContactEmail string
	ContactPhone string
	Utilization  budget.Utilization
	Reason       string
}

// ContactsReader resolves a salon's alert contacts.
type ContactsReader interface {
	ContactInfo(ctx context.Context, salonID string) (*models.SalonContact, error)
}

// SalonAlerter looks up a salon's contacts and delivers the budget alert.
// It is the piece the decision workers call: they know the salon id and
// the breach, not who to tell.
type SalonAlerter struct {
	contacts ContactsReader
	notifier *Notifier
	logger   logger.Logger
}

func NewSalonAlerter(contacts ContactsReader, notifier *Notifier, log logger.Logger) *SalonAlerter {
	return &SalonAlerter{
		contacts: contacts,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "salon-alerter"}),
	}
}

// Alert resolves contacts and sends the budget alert. Best-effort like the
// notifier itself.
func (a *SalonAlerter) Alert(ctx context.Context, salonID string, util budget.Utilization, reason string) {
	if a == nil {
		return
	}

	contact, err := a.contacts.ContactInfo(ctx, salonID)
	if err != nil {
		a.logger.Warn("contact lookup failed, budget alert dropped", map[string]interface{}{
			"salonId": salonID,
			"error":   err.Error(),
		})
		return
	}
	if contact == nil {
		a.logger.Warn("no contacts on record, budget alert dropped", map[string]interface{}{
			"salonId": salonID,
		})
		return
	}

	a.notifier.SendBudgetAlert(ctx, BudgetAlert{
		SalonID:      salonID,
		ContactEmail: contact.Email,
		ContactPhone: contact.Phone,
		Utilization:  util,
		Reason:       reason,
	})
}

// Notifier delivers budget alerts over the channels enabled in config.
// Delivery is best-effort: failures are logged and counted, never returned.
type Notifier struct {
	email  EmailSender
	sms    SMSSender
	cfg    config.NotificationConfig
	logger logger.Logger
}

func NewNotifier(email EmailSender, sms SMSSender, cfg config.NotificationConfig, log logger.Logger) *Notifier {
	return &Notifier{
		email:  email,
		sms:    sms,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
}

// SendBudgetAlert notifies the salon's contacts about a budget breach.
func (n *Notifier) SendBudgetAlert(ctx context.Context, alert BudgetAlert) {
	if n == nil {
		return
	}

	subject := fmt.Sprintf("Budget alert for salon %s", alert.SalonID)
	body := fmt.Sprintf(
		"AI usage budget alert: %s.\nDaily utilization: %.1f%%\nMonthly utilization: %.1f%%",
		alert.Reason, alert.Utilization.DailyPercent, alert.Utilization.MonthlyPercent,
	)

	if n.cfg.Email.Enabled && n.email != nil && alert.ContactEmail != "" {
		n.sendEmail(ctx, alert, subject, body)
	}
	if n.cfg.SMS.Enabled && n.sms != nil && alert.ContactPhone != "" {
		n.sendSMS(ctx, alert, body)
	}
}

func (n *Notifier) sendEmail(ctx context.Context, alert BudgetAlert, subject, body string) {
	input := &ses.SendEmailInput{
		Source: &n.cfg.Email.FromEmail,
		Destination: &sestypes.Destination{
			ToAddresses: []string{alert.ContactEmail},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: &subject},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: &body},
			},
		},
	}

	if _, err := n.email.SendEmail(ctx, input); err != nil {
		n.logger.Warn("budget alert email failed", map[string]interface{}{
			"salonId": alert.SalonID,
			"error":   err.Error(),
		})
		return
	}
	metrics.BudgetAlerts.WithLabelValues("email").Inc()
}

func (n *Notifier) sendSMS(ctx context.Context, alert BudgetAlert, body string) {
	input := &sns.PublishInput{
		PhoneNumber: &alert.ContactPhone,
		Message:     &body,
	}

	if _, err := n.sms.Publish(ctx, input); err != nil {
		n.logger.Warn("budget alert sms failed", map[string]interface{}{
			"salonId": alert.SalonID,
			"error":   err.Error(),
		})
		return
	}
	metrics.BudgetAlerts.WithLabelValues("sms").Inc()
}
