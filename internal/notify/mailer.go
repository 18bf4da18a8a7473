package notify

import (
	"fmt"
	"log"
	"net/smtp"
)

// Mailer sends plain-text mail, fire and forget: every error is logged
// and swallowed so a dead SMTP server never blocks the pipeline.
type Mailer struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

func (m *Mailer) Send(to, subject, body string) {
	if to == "" {
		return
	}
	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, msg); err != nil {
		log.Printf("notify: send mail to %s: %v", to, err)
		return
	}
	log.Printf("notify: mail sent to %s (%s)", to, subject)
}
