package mailer

import (
	"fmt"
	"log"
	"mime"
	"net/smtp"
	"os"
	"strings"
)

// Template carries one rendered email in both HTML and plain-text forms.
type Template struct {
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	Send(to string, msg Template) error
}

// smtpMailer sends multipart/alternative mail over plain SMTP auth.
type smtpMailer struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewFromEnv builds a mailer from SMTP_* environment variables. When
// SMTP_HOST is unset it returns a logging stub so local setups work
// without a mail server.
func NewFromEnv() Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		log.Println("SMTP_HOST not set, emails will be logged instead of sent")
		return &logMailer{}
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = os.Getenv("SMTP_USER")
	}
	return &smtpMailer{
		host: host,
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		from: from,
	}
}

func (m *smtpMailer) Send(to string, msg Template) error {
	if to == "" {
		return fmt.Errorf("empty recipient address")
	}

	const boundary = "mixed-boundary-0001"
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.Text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=utf-8\r\n\r\n%s\r\n", boundary, msg.HTML)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

// logMailer is the no-transport fallback for development.
type logMailer struct{}

func (m *logMailer) Send(to string, msg Template) error {
	log.Printf("[mail] to=%s subject=%q", to, msg.Subject)
	return nil
}
