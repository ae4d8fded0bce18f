package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
	"crm-agent/internal/models"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{}, nil
}

func testInvoice() *models.Invoice {
	return &models.Invoice{
		ID:            3,
		VentaID:       9,
		NumeroFactura: "FACT-20260831-ABCDEF01",
		Estado:        "pendiente",
		Total:         150,
	}
}

func TestInvoiceIssued(t *testing.T) {
	fake := &fakeSES{}
	n := &EmailNotifier{
		client:    fake,
		enabled:   true,
		fromEmail: "facturas@example.com",
		toEmail:   "admin@example.com",
		logger:    logger.NewNoOpLogger(),
	}

	err := n.InvoiceIssued(context.Background(), testInvoice())
	require.NoError(t, err)

	require.NotNil(t, fake.input)
	assert.Equal(t, "facturas@example.com", *fake.input.Source)
	assert.Equal(t, []string{"admin@example.com"}, fake.input.Destination.ToAddresses)
	assert.Contains(t, *fake.input.Message.Subject.Data, "FACT-20260831-ABCDEF01")
	assert.Contains(t, *fake.input.Message.Body.Text.Data, "Total: $150.00")
}

func TestInvoiceIssued_Disabled(t *testing.T) {
	fake := &fakeSES{}
	n := &EmailNotifier{client: fake, enabled: false, logger: logger.NewNoOpLogger()}

	err := n.InvoiceIssued(context.Background(), testInvoice())
	require.NoError(t, err)
	assert.Nil(t, fake.input)
}

func TestInvoiceIssued_Failure(t *testing.T) {
	n := &EmailNotifier{
		client:  &fakeSES{err: errors.New("ses unavailable")},
		enabled: true,
		logger:  logger.NewNoOpLogger(),
	}

	err := n.InvoiceIssued(context.Background(), testInvoice())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotificationSendFailed, apperrors.CodeOf(err))
}
