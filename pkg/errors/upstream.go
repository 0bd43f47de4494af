package errors

import (
	stdErrors "errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Upstream wraps a Sheets, Drive or Pub/Sub failure. The raw upstream message
// is exposed in details; Google API errors add their status and reason.
// An upstream 429 or 503 is reported as a dependency outage.
func Upstream(err error, message string) *Error {
	if err == nil {
		return New(CodeUpstream, message)
	}
	details := map[string]any{"error": err.Error()}
	code := CodeUpstream

	var apiErr *googleapi.Error
	if stdErrors.As(err, &apiErr) {
		details["status"] = apiErr.Code
		if apiErr.Message != "" {
			details["error"] = apiErr.Message
		}
		if len(apiErr.Errors) > 0 && apiErr.Errors[0].Reason != "" {
			details["reason"] = apiErr.Errors[0].Reason
		}
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code == http.StatusServiceUnavailable {
			code = CodeDependency
		}
	}
	return Wrap(code, err, message).WithDetails(details)
}
