package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// SendGridSender 通过 SendGrid v3 API 发信，仅 202 视为成功
type SendGridSender struct {
	from   string
	client *sendgrid.Client
}

func NewSendGridSender(from, apiKey string) *SendGridSender {
	return &SendGridSender{from: from, client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGridSender) Provider() string { return config.MailProviderSendGrid }

// BuildMessage 组装 SendGrid 邮件
func (s *SendGridSender) BuildMessage(letter Letter) (*sgmail.SGMailV3, error) {
	html, err := RenderHTML(letter)
	if err != nil {
		return nil, err
	}
	msg := sgmail.NewSingleEmail(
		sgmail.NewEmail("Your Horror Nobel", s.from),
		Subject,
		sgmail.NewEmail("", letter.To),
		PlainBody,
		html,
	)
	attachment := sgmail.NewAttachment().
		SetContent(base64.StdEncoding.EncodeToString(letter.PDF)).
		SetType("application/pdf").
		SetFilename(AttachmentName).
		SetDisposition("attachment")
	msg.AddAttachment(attachment)
	return msg, nil
}

// Send 发送邮件
func (s *SendGridSender) Send(ctx context.Context, letter Letter) error {
	msg, err := s.BuildMessage(letter)
	if err != nil {
		metrics.EmailSendTotal.WithLabelValues(s.Provider(), "error").Inc()
		return err
	}
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		metrics.EmailSendTotal.WithLabelValues(s.Provider(), "error").Inc()
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		metrics.EmailSendTotal.WithLabelValues(s.Provider(), "error").Inc()
		return fmt.Errorf("sendgrid send: unexpected status %d", resp.StatusCode)
	}

	metrics.EmailSendTotal.WithLabelValues(s.Provider(), "success").Inc()
	logger.Info(ctx, "story email sent", "provider", s.Provider())
	return nil
}
