package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/users/U1Z8TCZAT":             "/v1/users/:id",
		"/v1/users/U1Z8TCZAT/conversations": "/v1/users/:id/conversations",
		"/v1/sync/U1Z8TCZAT":              "/v1/sync/:id",
		"/v1/sync/U1Z8TCZAT?force=1":      "/v1/sync/:id",
		"/healthz":                        "/healthz",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
