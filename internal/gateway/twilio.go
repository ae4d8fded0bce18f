// internal/gateway/twilio.go
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crm-agent/internal/common/config"
	apperrors "crm-agent/internal/common/errors"
	"crm-agent/internal/common/httpclient"
	"crm-agent/internal/common/logger"
)

// TwilioSender delivers replies over the Twilio Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *httpclient.Client
	logger     logger.Logger
}

func NewTwilioSender(cfg config.GatewayConfig, log logger.Logger) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.Twilio.AccountSID,
		authToken:  cfg.Twilio.AuthToken,
		fromNumber: cfg.Twilio.FromNumber,
		baseURL:    strings.TrimRight(cfg.Twilio.BaseURL, "/"),
		client:     httpclient.NewClient(time.Duration(cfg.Twilio.Timeout) * time.Millisecond),
		logger:     log.WithFields(map[string]interface{}{"component": "gateway", "provider": "twilio"}),
	}
}

// Send posts one outbound SMS. The Twilio API expects a form-encoded body
// with basic auth on the account SID.
func (s *TwilioSender) Send(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.fromNumber)
	form.Set("Body", body)

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return apperrors.NewGatewayDeliveryFailedError("twilio", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.DoWithContext(ctx, req)
	if err != nil {
		return apperrors.NewGatewayDeliveryFailedError("twilio", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.Error("twilio rejected message", map[string]interface{}{
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return apperrors.NewGatewayDeliveryFailedError("twilio",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	s.logger.Info("message delivered", map[string]interface{}{"to": to})
	return nil
}
