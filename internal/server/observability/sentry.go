// Package observability reports internal failures and recovered panics to
// Sentry. With an empty DSN the SDK stays uninitialised and every call is a
// no-op.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// CaptureError reports err tagged with the RPC method it came from.
func CaptureError(err error, method string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("rpc.method", method)
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic with its stack.
func CapturePanic(rec any, stack []byte, method string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("rpc.method", method)
		scope.SetExtra("panic", rec)
		scope.SetExtra("stack", string(stack))
		sentry.CaptureMessage("panic in rpc handler")
	})
}
