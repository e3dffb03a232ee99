package mail

import (
	"bytes"
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/pkg/logger"
	"horror-nobel-api/pkg/metrics"
)

// SMTPSender 通过 STARTTLS SMTP 发信
type SMTPSender struct {
	from   string
	client *gomail.Client
}

// NewSMTPSender 创建 SMTP 客户端，连接在每次发送时建立
func NewSMTPSender(from string, cfg *config.SMTPConfig) (*SMTPSender, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	client, err := gomail.NewClient(cfg.Host,
		gomail.WithPort(port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{from: from, client: client}, nil
}

func (s *SMTPSender) Provider() string { return config.MailProviderSMTP }

// BuildMessage 组装带 PDF 附件的邮件
func (s *SMTPSender) BuildMessage(letter Letter) (*gomail.Msg, error) {
	html, err := RenderHTML(letter)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(letter.To); err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}
	msg.Subject(Subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)
	if err := msg.AttachReader(AttachmentName, bytes.NewReader(letter.PDF),
		gomail.WithFileContentType(gomail.ContentType("application/pdf"))); err != nil {
		return nil, fmt.Errorf("attach pdf: %w", err)
	}
	return msg, nil
}

// Send 发送邮件
func (s *SMTPSender) Send(ctx context.Context, letter Letter) error {
	msg, err := s.BuildMessage(letter)
	if err != nil {
		metrics.EmailSendTotal.WithLabelValues(s.Provider(), "error").Inc()
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		metrics.EmailSendTotal.WithLabelValues(s.Provider(), "error").Inc()
		return fmt.Errorf("smtp send: %w", err)
	}

	metrics.EmailSendTotal.WithLabelValues(s.Provider(), "success").Inc()
	logger.Info(ctx, "story email sent", "provider", s.Provider())
	return nil
}
