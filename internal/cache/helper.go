package cache

import (
	"context"
	"encoding/json"

	"github.com/getsentry/sentry-go"
)

// UnmarshalCacheValue converts a cached value to *T. The in-memory cache
// returns the stored pointer; redis returns a JSON string.
func UnmarshalCacheValue[T any](value interface{}) (*T, bool) {
	if value == nil {
		return nil, false
	}
	if typed, ok := value.(*T); ok {
		return typed, true
	}
	if str, ok := value.(string); ok {
		var result T
		if err := json.Unmarshal([]byte(str), &result); err == nil {
			return &result, true
		}
	}
	return nil, false
}

// span traces one backend call when the context carries a sentry hub.
// The zero value is a no-op.
type span struct {
	s *sentry.Span
}

func startSpan(ctx context.Context, backend, operation, key string) span {
	if sentry.GetHubFromContext(ctx) == nil {
		return span{}
	}
	name := "cache." + backend + "." + operation
	s := sentry.StartSpan(ctx, "db.cache", sentry.WithDescription(name))
	s.SetData("cache.backend", backend)
	s.SetData("cache.key", key)
	return span{s: s}
}

// end records err, if any, and finishes the span
func (sp span) end(err error) {
	if sp.s == nil {
		return
	}
	if err != nil {
		sp.s.Status = sentry.SpanStatusInternalError
		sp.s.SetData("error", err.Error())
	} else {
		sp.s.Status = sentry.SpanStatusOK
	}
	sp.s.Finish()
}
