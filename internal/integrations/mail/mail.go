// Package mail delivers HTML email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	SenderAddress      string
	SenderName         string
	InsecureSkipVerify bool
}

type Sender struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
}

func NewSender(cfg Config) *Sender {
	log.Printf("[mail] Initializing mail sender for host: %s, port: %d, user: %s", cfg.Host, cfg.Port, cfg.User)
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Printf("[mail] InsecureSkipVerify is enabled for mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = "Case Escalations"
	}
	return &Sender{
		dialer:        d,
		senderAddress: cfg.SenderAddress,
		senderName:    senderName,
	}
}

// Send delivers one message to one recipient. There is no retry; the caller
// records a failure and moves on. The SMTP exchange cannot be interrupted
// mid-flight, so when ctx ends first Send returns ctx.Err() and the
// exchange finishes in the background.
func (s *Sender) Send(ctx context.Context, to, subject, html string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.senderAddress, s.senderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", html)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send to %s: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail: send to %s: %w", to, ctx.Err())
	}
}

func (s *Sender) GetHost() string {
	return s.dialer.Host
}

func (s *Sender) GetPort() int {
	return s.dialer.Port
}
