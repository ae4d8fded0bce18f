// Package notify sends back-office notifications when business events
// complete. Delivery failures are reported to callers as errors but are
// never fatal to the dialog turn that triggered them.
package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"crm-agent/internal/common/config"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/models"
)

// sesAPI is the subset of the SES client the notifier uses.
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailNotifier emails the back office when a new invoice is issued.
// A disabled notifier is valid and drops every notification silently.
type EmailNotifier struct {
	client    sesAPI
	enabled   bool
	fromEmail string
	toEmail   string
	logger    logger.Logger
}

func NewEmailNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*EmailNotifier, error) {
	n := &EmailNotifier{
		enabled:   cfg.Email.Enabled,
		fromEmail: cfg.Email.FromEmail,
		toEmail:   cfg.Email.ToEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
	if !n.enabled {
		return n, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, err
	}
	n.client = ses.NewFromConfig(awsCfg)
	return n, nil
}

// InvoiceIssued emails the invoice summary. Returns nil when the notifier
// is disabled.
func (n *EmailNotifier) InvoiceIssued(ctx context.Context, invoice *models.Invoice) error {
	if !n.enabled {
		return nil
	}

	subject := fmt.Sprintf("Nueva factura emitida: %s", invoice.NumeroFactura)
	body := fmt.Sprintf(
		"Se ha emitido una nueva factura.\n\nNúmero: %s\nVenta ID: %d\nTotal: $%.2f\nEstado: %s\n",
		invoice.NumeroFactura, invoice.VentaID, invoice.Total, invoice.Estado,
	)
	charset := "UTF-8"

	input := &ses.SendEmailInput{
		Source: &n.fromEmail,
		Destination: &types.Destination{
			ToAddresses: []string{n.toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: &subject, Charset: &charset},
			Body: &types.Body{
				Text: &types.Content{Data: &body, Charset: &charset},
			},
		},
	}

	if _, err := n.client.SendEmail(ctx, input); err != nil {
		n.logger.WithError(err).Error("invoice email failed", map[string]interface{}{
			"invoice": invoice.NumeroFactura,
		})
		return apperrors.NewNotificationSendFailedError("invoice_email", err)
	}

	n.logger.Info("invoice email sent", map[string]interface{}{
		"invoice": invoice.NumeroFactura,
		"to":      n.toEmail,
	})
	return nil
}
