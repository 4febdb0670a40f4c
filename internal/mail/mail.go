// Package mail delivers notification messages to an address.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var ErrInvalidHeader = errors.New("mail: header contains line break")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender is the outbound notification gateway.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender sends HTML mail through an SMTP relay using STARTTLS when the
// server offers it.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

func NewSMTPSender(host string, port int, user, pass, from string) *SMTPSender {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
		auth: auth,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := s.build(m)
	if err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.from, []string{m.To}, body); err != nil {
		return fmt.Errorf("smtp send to %s: %w", s.addr, err)
	}
	return nil
}

func (s *SMTPSender) build(m Message) ([]byte, error) {
	for _, h := range []string{s.from, m.To, m.Subject} {
		if strings.ContainsAny(h, "\r\n") {
			return nil, ErrInvalidHeader
		}
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(m.HTML)
	return b.Bytes(), nil
}

// LogSender writes messages to the log instead of delivering them. Bodies
// carry one-time secrets, so they are only logged at debug level.
type LogSender struct {
	logger *zap.SugaredLogger
}

func NewLogSender(logger *zap.SugaredLogger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.Infow("mail (not delivered)", "to", m.To, "subject", m.Subject)
	s.logger.Debugw("mail body (not delivered)", "to", m.To, "body", m.HTML)
	return nil
}
