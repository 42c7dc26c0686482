package main

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

func initSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func flushSentry() {
	sentry.Flush(2 * time.Second)
}

// reportToSentry is the engine's failure reporter. Without a DSN the
// current hub has no client and the capture is a no-op.
func reportToSentry(_ context.Context, op string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("op", op)
		sentry.CaptureException(err)
	})
}
