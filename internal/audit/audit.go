// Package audit writes structured security events through zap.
package audit

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LoginAttempt          = "LOGIN_ATTEMPT"
	FailLogin             = "FAIL_LOGIN"
	RequiredMFA           = "REQUIRED_MFA"
	SuccessLogin          = "SUCCESS_LOGIN"
	FailRegistration      = "FAIL_REGISTRATION"
	SuccessRegistration   = "SUCCESS_REGISTRATION"
	FailVerification      = "FAIL_VERIFICATION"
	SuccessVerification   = "SUCCESS_VERIFICATION"
	RequestReset          = "REQUEST_RESET"
	FailReset             = "FAIL_RESET"
	SuccessReset          = "SUCCESS_RESET"
	RateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	AuthRateLimitExceeded = "AUTH_RATE_LIMIT_EXCEEDED"
	Logout                = "LOGOUT"
)

type Event struct {
	Name    string
	Message string
	User    string
	Status  string
	Err     error
}

type Request struct {
	IP  string
	URL string
}

type ctxKey struct{}

// WithRequest attaches the caller's address and URL to ctx.
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

func RequestFrom(ctx context.Context) Request {
	r, _ := ctx.Value(ctxKey{}).(Request)
	return r
}

type Logger struct {
	lg *zap.Logger
}

func New(lg *zap.Logger) *Logger {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Logger{lg: lg.Named("audit")}
}

// Log emits e at error level when it carries an error, warn for failures
// and rate limiting, info otherwise.
func (l *Logger) Log(ctx context.Context, e Event) {
	if l == nil {
		return
	}
	req := RequestFrom(ctx)
	fields := []zap.Field{
		zap.String("event", e.Name),
		zap.String("user", e.User),
		zap.String("status", e.Status),
	}
	if req.IP != "" {
		fields = append(fields, zap.String("ip", req.IP))
	}
	if req.URL != "" {
		fields = append(fields, zap.String("url", req.URL))
	}
	if e.Err != nil {
		fields = append(fields, zap.Error(e.Err))
	}
	if ce := l.lg.Check(levelFor(e), e.Message); ce != nil {
		ce.Write(fields...)
	}
}

func levelFor(e Event) zapcore.Level {
	switch {
	case e.Err != nil:
		return zapcore.ErrorLevel
	case strings.HasPrefix(e.Name, "FAIL_"), strings.Contains(e.Name, "RATE_LIMIT"):
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
