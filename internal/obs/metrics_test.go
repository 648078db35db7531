package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                       "/",
		"/metrics":                               "/metrics",
		"/v1/products/COFFEE-001":                "/v1/products/:id",
		"/v1/products/COFFEE-001/events":         "/v1/products/:id/events",
		"/v1/products/COFFEE-001/deactivate":     "/v1/products/:id/deactivate",
		"/v1/products/COFFEE-001/actors/GADDR_B": "/v1/products/:id/actors/:actor",
		"/v1/products/COFFEE-001/events?limit=5": "/v1/products/:id/events",
		"/v1/events/42":                          "/v1/events/:id",
		"/v1/stats":                              "/v1/stats",
		"/v1/products":                           "/v1/products",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
