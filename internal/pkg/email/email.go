package email

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/qs3c/ainexus_server/config"
)

type Service struct {
	cfg *config.EmailConfig
}

func NewService(cfg *config.EmailConfig) *Service {
	return &Service{cfg: cfg}
}

// SendWaitlistWelcome 发送候补名单欢迎邮件
func (s *Service) SendWaitlistWelcome(to, firstName string, position int64) error {
	subject, body := s.waitlistWelcome(firstName, position)
	return s.sendHTML(to, subject, body)
}

func (s *Service) waitlistWelcome(firstName string, position int64) (string, string) {
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	subject := "You're on the AI Nexus waitlist"
	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2563eb;">Welcome to AI Nexus!</h2>
        <p>Hi %s,</p>
        <p>Thanks for joining the waitlist. You are number <strong>%d</strong> in line.</p>
        <p>We will let you know as soon as the marketplace opens. In the meantime you can follow along at:</p>
        <div style="text-align: center; margin: 30px 0;">
            <a href="%s" style="background-color: #2563eb; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Visit AI Nexus</a>
        </div>
        <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 20px 0;">
        <p style="color: #6b7280; font-size: 12px;">This email was sent automatically, please do not reply.</p>
    </div>
</body>
</html>
`, html.EscapeString(name), position, s.cfg.AppURL)

	return subject, body
}

// sendHTML 发送 HTML 邮件
func (s *Service) sendHTML(to, subject, body string) error {
	msg := buildMessage(s.cfg.From, to, subject, "text/html; charset=UTF-8", body)

	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, contentType, body string) string {
	// 固定顺序，便于测试和排查
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", contentType},
	}

	var msg strings.Builder
	for _, h := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", h[0], h[1]))
	}
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.String()
}
