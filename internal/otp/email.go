package otp

import (
	"context"
	"fmt"
	"log"
	"net/smtp"

	"messenger-service/internal/config"
)

// EmailSender delivers a one-time code to an email address.
type EmailSender interface {
	SendCode(ctx context.Context, code, email string) error
}

// SMTPSender sends codes through a plain SMTP relay.
type SMTPSender struct {
	host string
	port string
	user string
	pass string
	from string
}

// NewSMTPSender reads relay settings from the environment.
func NewSMTPSender() *SMTPSender {
	return &SMTPSender{
		host: config.GetEnv("SMTP_HOST", "localhost"),
		port: config.GetEnv("SMTP_PORT", "587"),
		user: config.GetEnv("SMTP_USER", ""),
		pass: config.GetEnv("SMTP_PASS", ""),
		from: config.GetEnv("SMTP_FROM", "no-reply@messenger.local"),
	}
}

func (s *SMTPSender) SendCode(ctx context.Context, code, email string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your verification code\r\n\r\nYour verification code is %s. It expires in 5 minutes.\r\n",
		s.from, email, code))

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	return smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{email}, msg)
}

// LogSender writes codes to the process log. Development only.
type LogSender struct{}

func (LogSender) SendCode(ctx context.Context, code, email string) error {
	log.Printf("otp for %s: %s", email, code)
	return nil
}
