package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"gopkg.in/gomail.v2"
)

// Mailer delivers verification codes
type Mailer interface {
	SendCode(ctx context.Context, to, name, code string) error
}

type SMTPOpts struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	SiteName string
}

type SMTPMailer struct {
	opts SMTPOpts
	d    *gomail.Dialer
}

func NewSMTPMailer(o SMTPOpts) *SMTPMailer {
	return &SMTPMailer{
		opts: o,
		d:    gomail.NewDialer(o.Host, o.Port, o.Username, o.Password),
	}
}

func (s *SMTPMailer) SendCode(ctx context.Context, to, name, code string) error {
	if to == s.opts.From {
		return errors.New("invalid email address")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.opts.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Your %s verification code", s.opts.SiteName))
	m.SetBody("text/plain", fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n", name, code))
	m.AddAlternative("text/html", fmt.Sprintf(
		"<p>Hi %s,</p><p>Your verification code is <b>%s</b>.</p><p>It expires in 10 minutes.</p>",
		html.EscapeString(name), code))

	if err := s.d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send verification mail, %w", err)
	}

	return nil
}
