// mail/mail.go
package mail

import (
	"bytes"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/chainreaction/gameserver/logger"
)

// Sender delivers a templated notification to one recipient. Callers
// treat delivery as fire-and-forget: errors are logged, never surfaced
// to the user whose request triggered the mail.
type Sender interface {
	Send(to, subject, templateName string, data interface{}) error
}

// SMTPSender sends through a plain SMTP relay.
type SMTPSender struct {
	host      string
	port      int
	sender    string
	auth      smtp.Auth
	templates *template.Template
}

func NewSMTPSender(host string, port int, sender, password string) (*SMTPSender, error) {
	tmpl, err := template.New("mail").Parse(allTemplates)
	if err != nil {
		return nil, err
	}
	return &SMTPSender{
		host:      host,
		port:      port,
		sender:    sender,
		auth:      smtp.PlainAuth("", sender, password, host),
		templates: tmpl,
	}, nil
}

func (s *SMTPSender) Send(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return err
	}
	msg := bytes.Buffer{}
	fmt.Fprintf(&msg, "From: %s\r\n", s.sender)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.Write(body.Bytes())

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	return smtp.SendMail(addr, s.auth, s.sender, []string{to}, msg.Bytes())
}

// NopSender drops every message. Used when mail is disabled in the
// configuration and in tests.
type NopSender struct{}

func (NopSender) Send(to, subject, templateName string, data interface{}) error {
	logger.Log.Infow("mail disabled, dropping message", "to", to, "subject", subject, "template", templateName)
	return nil
}
