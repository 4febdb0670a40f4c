package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPSender_Send(t *testing.T) {
	s := NewSMTPSender("smtp.example.com", 587, "user", "pass", "noreply@example.com")

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := s.Send(context.Background(), Message{To: "alice@example.com", Subject: "Login code", HTML: "<p>123456</p>"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.True(t, strings.HasPrefix(raw, "From: noreply@example.com\r\n"))
	assert.Contains(t, raw, "Subject: Login code\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n\r\n<p>123456</p>")
}

func TestSMTPSender_RejectsHeaderInjection(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "noreply@example.com")
	s.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	err := s.Send(context.Background(), Message{To: "a@example.com\r\nBcc: evil@example.com", Subject: "x"})
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestSMTPSender_WrapsError(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "noreply@example.com")
	boom := errors.New("connection refused")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := s.Send(context.Background(), Message{To: "a@example.com", Subject: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSMTPSender("localhost", 25, "", "", "noreply@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}

func TestLogSender_BodyOnlyAtDebug(t *testing.T) {
	msg := Message{To: "a@example.com", Subject: "Login code", HTML: "Your login code is: 123456."}

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, NewLogSender(zap.New(core).Sugar()).Send(context.Background(), msg))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "a@example.com", entry.ContextMap()["to"])
	assert.NotContains(t, entry.ContextMap(), "body")

	core, logs = observer.New(zapcore.DebugLevel)
	require.NoError(t, NewLogSender(zap.New(core).Sugar()).Send(context.Background(), msg))
	bodies := logs.FilterMessage("mail body (not delivered)").All()
	require.Len(t, bodies, 1)
	assert.Equal(t, msg.HTML, bodies[0].ContextMap()["body"])
}
