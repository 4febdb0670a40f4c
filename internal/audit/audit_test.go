package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLog_LevelsAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := New(zap.New(core))
	ctx := WithRequest(context.Background(), Request{IP: "10.0.0.1", URL: "/users/login"})

	l.Log(ctx, Event{Name: SuccessLogin, Message: "Successful login by alice", User: "alice", Status: "success"})
	l.Log(ctx, Event{Name: FailLogin, Message: "Failed login by alice - password incorrect", User: "alice", Status: "request"})
	l.Log(ctx, Event{Name: AuthRateLimitExceeded, Message: "limit", Status: "blocked"})
	l.Log(ctx, Event{Name: RequestReset, Message: "mail failed", Err: errors.New("smtp down")})

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "SUCCESS_LOGIN", fields["event"])
	assert.Equal(t, "alice", fields["user"])
	assert.Equal(t, "10.0.0.1", fields["ip"])
	assert.Equal(t, "/users/login", fields["url"])
	assert.Equal(t, "audit", entries[0].LoggerName)
}

func TestLog_NilSafe(t *testing.T) {
	var l *Logger
	l.Log(context.Background(), Event{Name: Logout})
	New(nil).Log(context.Background(), Event{Name: Logout})
}
