package metrics

import (
	obserrors "github.com/target/mmk-auth-api/internal/observability/errors"
	"github.com/target/mmk-auth-api/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Auth event names.
const (
	EventAuthenticate  = "authenticate"
	EventLogin         = "login"
	EventRegister      = "register"
	EventFederated     = "federated_login"
	EventProvision     = "provision"
	EventAuthorization = "authorize"
)

// AuthMetric captures a single authentication or authorization outcome.
type AuthMetric struct {
	Event  string
	Result string
	Reason string
	Err    error
}

// EmitAuth counts an auth event tagged with its event, result and reason.
func EmitAuth(sink statsd.Sink, in AuthMetric) {
	if sink == nil || in.Event == "" {
		return
	}

	tags := map[string]string{
		"event":  in.Event,
		"result": in.Result,
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.event", 1, tags)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
