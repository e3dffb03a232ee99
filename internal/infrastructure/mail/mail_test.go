package mail

import (
	"bytes"
	"strings"
	"testing"

	"horror-nobel-api/internal/config"
)

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(Letter{Title: "<闇の館>", Turns: 6})
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{AttachmentName, "6回の対話", "&lt;闇の館&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}

	html, _ = RenderHTML(Letter{})
	if !strings.Contains(html, "4回の対話") || strings.Contains(html, "作品名") {
		t.Error("defaults not applied")
	}
}

func TestSMTPBuildMessage(t *testing.T) {
	s, err := NewSMTPSender("noreply@example.com", &config.SMTPConfig{
		Host: "smtp.example.com", Port: 587, Username: "u", Password: "p",
	})
	if err != nil {
		t.Fatalf("NewSMTPSender: %v", err)
	}
	msg, err := s.BuildMessage(Letter{To: "reader@example.com", PDF: []byte("%PDF-1.4")})
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	rcpts, err := msg.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "reader@example.com" {
		t.Fatalf("recipients = %v, %v", rcpts, err)
	}
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	raw := buf.String()
	if !strings.Contains(raw, AttachmentName) || !strings.Contains(raw, "application/pdf") {
		t.Fatal("attachment missing from message")
	}

	if _, err := s.BuildMessage(Letter{To: "not an address"}); err == nil {
		t.Fatal("invalid recipient should fail")
	}
}

func TestSendGridBuildMessage(t *testing.T) {
	s := NewSendGridSender("noreply@example.com", "SG.key")
	msg, err := s.BuildMessage(Letter{To: "reader@example.com", PDF: []byte("pdf")})
	if err != nil {
		t.Fatalf("BuildMessage: %v", err)
	}
	if msg.Subject != Subject {
		t.Fatalf("Subject = %q", msg.Subject)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments = %d", len(msg.Attachments))
	}
	a := msg.Attachments[0]
	if a.Filename != AttachmentName || a.Type != "application/pdf" || a.Content != "cGRm" {
		t.Fatalf("attachment = %+v", a)
	}
}

func TestNewSenderAvailability(t *testing.T) {
	if NewSender(&config.MailConfig{Provider: config.MailProviderSMTP}).OK() {
		t.Error("smtp without credentials should be unavailable")
	}
	if NewSender(&config.MailConfig{Provider: config.MailProviderSendGrid}).OK() {
		t.Error("sendgrid without key should be unavailable")
	}
	a := NewSender(&config.MailConfig{Provider: config.MailProviderSendGrid, SendGrid: config.SendGridConfig{APIKey: "k"}})
	if s, ok := a.Get(); !ok || s.Provider() != config.MailProviderSendGrid {
		t.Fatalf("sendgrid sender = %v", a)
	}
}
