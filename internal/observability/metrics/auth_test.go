package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
)

type countCall struct {
	name  string
	value int64
	tags  map[string]string
}

type recordingSink struct {
	mu     sync.Mutex
	counts []countCall
}

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, countCall{name: name, value: value, tags: tags})
}

func (r *recordingSink) Gauge(string, float64, map[string]string) {}

func (r *recordingSink) Timing(string, time.Duration, map[string]string) {}

type tokenError struct{}

func (tokenError) Error() string { return "bad token" }

func TestEmitAuth(t *testing.T) {
	sink := &recordingSink{}

	EmitAuth(sink, AuthMetric{Event: EventAuthenticate, Result: ResultFailure, Reason: "expired"})
	EmitAuth(sink, AuthMetric{Event: EventLogin, Result: ResultSuccess})

	require.Len(t, sink.counts, 2)
	assert.Equal(t, "auth.event", sink.counts[0].name)
	assert.EqualValues(t, 1, sink.counts[0].value)
	assert.Equal(t, map[string]string{
		"event":  EventAuthenticate,
		"result": ResultFailure,
		"reason": "expired",
	}, sink.counts[0].tags)
	assert.NotContains(t, sink.counts[1].tags, "reason")
}

func TestEmitAuth_ErrorClass(t *testing.T) {
	sink := &recordingSink{}

	EmitAuth(sink, AuthMetric{
		Event:  EventProvision,
		Result: ResultError,
		Err:    fmt.Errorf("lookup: %w", tokenError{}),
	})
	EmitAuth(sink, AuthMetric{
		Event:  EventProvision,
		Result: ResultError,
		Err:    apperrors.Conflict("taken"),
	})

	require.Len(t, sink.counts, 2)
	assert.Equal(t, "metrics_tokenerror", sink.counts[0].tags["error_class"])
	assert.Equal(t, "conflict", sink.counts[1].tags["error_class"])
}

func TestEmitAuth_NilSinkAndMissingEvent(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitAuth(nil, AuthMetric{Event: EventLogin, Result: ResultSuccess})
	})

	sink := &recordingSink{}
	EmitAuth(sink, AuthMetric{Result: ResultSuccess})
	assert.Empty(t, sink.counts)
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))

	src := map[string]string{"a": "1", "": "skip"}
	out := CloneTags(src)
	assert.Equal(t, map[string]string{"a": "1"}, out)

	out["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
