// Package mail 发送附带小说 PDF 的邮件，支持 SMTP 与 SendGrid
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"horror-nobel-api/internal/config"
	"horror-nobel-api/internal/domain/service"
)

const (
	Subject        = "🎭 あなたの恐怖小説が完成しました - Your Horror Nobel"
	AttachmentName = "your_horror_novel.pdf"
	PlainBody      = "あなたとAIが共同で創作した恐怖小説が完成しました。添付のPDFをご覧ください。"
)

//go:embed templates/story_email.html
var templateFS embed.FS

var storyTemplate = template.Must(template.ParseFS(templateFS, "templates/story_email.html"))

// Letter 一封小说邮件
type Letter struct {
	To    string
	Title string
	Turns int
	PDF   []byte
}

// Sender 邮件发送
type Sender interface {
	Send(ctx context.Context, letter Letter) error
	Provider() string
}

// RenderHTML 渲染邮件正文
func RenderHTML(letter Letter) (string, error) {
	turns := letter.Turns
	if turns <= 0 {
		turns = 4
	}
	var buf bytes.Buffer
	err := storyTemplate.Execute(&buf, map[string]any{
		"Attachment": AttachmentName,
		"Title":      letter.Title,
		"Turns":      turns,
	})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

// NewSender 按配置选择发送方式，缺少凭据时返回不可用
func NewSender(cfg *config.MailConfig) service.Availability[Sender] {
	switch cfg.Provider {
	case config.MailProviderSendGrid:
		if strings.TrimSpace(cfg.SendGrid.APIKey) == "" {
			return service.Unavailable[Sender]("sendgrid api key not configured")
		}
		return service.Available[Sender](NewSendGridSender(cfg.From, cfg.SendGrid.APIKey))
	default:
		if cfg.SMTP.Host == "" || cfg.SMTP.Username == "" || cfg.SMTP.Password == "" {
			return service.Unavailable[Sender]("smtp credentials not configured")
		}
		s, err := NewSMTPSender(cfg.From, &cfg.SMTP)
		if err != nil {
			return service.Unavailable[Sender](err.Error())
		}
		return service.Available[Sender](s)
	}
}
