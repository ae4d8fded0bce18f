// internal/gateway/sns.go
package gateway

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"crm-agent/internal/common/config"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/logger"
)

// snsAPI is the subset of the SNS client the sender uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender delivers replies as direct SMS publishes through AWS SNS.
type SNSSender struct {
	client   snsAPI
	senderID string
	logger   logger.Logger
}

func NewSNSSender(ctx context.Context, cfg config.GatewayConfig, log logger.Logger) (*SNSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SNS.Region))
	if err != nil {
		return nil, err
	}
	return &SNSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: cfg.SNS.DefaultSMSSenderID,
		logger:   log.WithFields(map[string]interface{}{"component": "gateway", "provider": "sns"}),
	}, nil
}

func (s *SNSSender) Send(ctx context.Context, to, body string) error {
	input := &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &body,
	}
	if s.senderID != "" {
		senderIDKey := "AWS.SNS.SMS.SenderID"
		dataType := "String"
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			senderIDKey: {DataType: &dataType, StringValue: &s.senderID},
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return apperrors.NewGatewayDeliveryFailedError("sns", err)
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	s.logger.Info("message delivered", map[string]interface{}{
		"to":        to,
		"messageId": messageID,
	})
	return nil
}
