package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig configures error reporting. Nothing is sent unless Enabled
// is set and DSN is non-empty.
type SentryConfig struct {
	DSN         string
	Enabled     bool
	Environment string
	Release     string

	// SampleRate defaults to 1 when zero.
	SampleRate float64

	// TracesSampleRate above zero traces processor calls through HTTPTransport.
	TracesSampleRate float64

	Debug bool
}

var sentryEnabled atomic.Bool

// sensitiveHeaders never leave the process: session cookies, operator
// tokens and processor signatures.
var sensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie", "X-Rutavity-Signature"}

// sensitiveParams are stripped from captured query strings.
var sensitiveParams = []string{"signature", "token"}

// InitSentry configures the global Sentry client and returns a flush func
// for shutdown.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	sentryEnabled.Store(false)

	if !cfg.Enabled {
		logger.Info("Sentry disabled (SENTRY_ENABLED=false)")
		return func() {}, nil
	}
	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured, disabling error tracking")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			scrubEvent(event)
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
		"traces_sample_rate", cfg.TracesSampleRate,
	)

	return func() {
		sentry.Flush(2 * time.Second)
	}, nil
}

// IsEnabled reports whether events are being sent.
func IsEnabled() bool {
	return sentryEnabled.Load()
}

// scrubEvent removes credentials and signatures from the captured request.
func scrubEvent(event *sentry.Event) {
	if event == nil || event.Request == nil {
		return
	}
	req := event.Request

	for name := range req.Headers {
		for _, s := range sensitiveHeaders {
			if strings.EqualFold(name, s) {
				req.Headers[name] = "[redacted]"
			}
		}
	}
	req.Cookies = ""

	if req.QueryString != "" {
		if q, err := url.ParseQuery(req.QueryString); err == nil {
			for _, p := range sensitiveParams {
				if q.Has(p) {
					q.Set(p, "[redacted]")
				}
			}
			req.QueryString = q.Encode()
		} else {
			req.QueryString = ""
		}
	}

	// Form posts from the processor carry signed payloads.
	req.Data = ""
}

// CaptureError reports err with optional extras. No-op when disabled.
func CaptureError(err error, extras ...map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for _, e := range extras {
			for key, value := range e {
				scope.SetExtra(key, value)
			}
		}
		sentry.CaptureException(err)
	})
}

// CaptureTransactionError reports err tagged with the payment reference and
// method so reports about one transaction group together.
func CaptureTransactionError(ctx context.Context, err error, reference, method string) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("payment.reference", reference)
		scope.SetTag("payment.method", method)
		hub.CaptureException(err)
	})
}

// SentryMiddleware gives each request its own hub carrying the request, and
// reports panics before answering 500.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.CurrentHub().Clone()
			hub.Scope().SetRequest(r)
			if id := r.Header.Get("X-Request-ID"); id != "" {
				hub.Scope().SetTag("request_id", id)
			}
			ctx := sentry.SetHubOnContext(r.Context(), hub)

			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					hub.RecoverWithContext(ctx, rec)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HTTPTransport traces outgoing processor calls as http.client spans.
type HTTPTransport struct {
	Transport http.RoundTripper
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !IsEnabled() {
		return t.Transport.RoundTrip(req)
	}

	span := sentry.StartSpan(req.Context(), "http.client")
	span.Description = req.Method + " " + req.URL.Host + req.URL.Path
	defer span.Finish()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, err
	}
	span.SetData("http.status_code", resp.StatusCode)
	return resp, nil
}
