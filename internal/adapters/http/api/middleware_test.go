package api

import "testing"

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status   int
		kind     string
		severity string
	}{
		{400, "client_error", "medium"},
		{404, "not_found", "medium"},
		{405, "client_error", "medium"},
		{429, "client_error", "medium"},
		{500, "server_error", "high"},
		{503, "server_error", "high"},
		{302, "unknown", "low"},
	}
	for _, c := range cases {
		if got := getErrorType(c.status); got != c.kind {
			t.Errorf("getErrorType(%d) = %q, want %q", c.status, got, c.kind)
		}
		if got := getErrorSeverity(c.status); got != c.severity {
			t.Errorf("getErrorSeverity(%d) = %q, want %q", c.status, got, c.severity)
		}
	}
}
