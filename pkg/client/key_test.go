package client

import (
	"net/url"
	"testing"
)

func TestRequestKey_String(t *testing.T) {
	tests := []struct {
		name     string
		key      RequestKey
		expected string
	}{
		{
			name:     "no query",
			key:      RequestKey{Method: "GET", Endpoint: "/users/usr_1"},
			expected: "GET:/users/usr_1",
		},
		{
			name:     "lower-case method",
			key:      RequestKey{Method: "get", Endpoint: "/users/usr_1"},
			expected: "GET:/users/usr_1",
		},
		{
			name: "query sorted by key",
			key: RequestKey{
				Method:   "GET",
				Endpoint: "/groups/grp_1/members",
				Query:    url.Values{"offset": {"0"}, "limit": {"50"}},
			},
			expected: "GET:/groups/grp_1/members?limit=50&offset=0",
		},
		{
			name:     "empty query",
			key:      RequestKey{Method: "GET", Endpoint: "/worlds/wrld_1", Query: url.Values{}},
			expected: "GET:/worlds/wrld_1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRequestKey_DistinguishesQueries(t *testing.T) {
	a := RequestKey{Method: "GET", Endpoint: "/groups/grp_1/members", Query: url.Values{"offset": {"0"}}}
	b := RequestKey{Method: "GET", Endpoint: "/groups/grp_1/members", Query: url.Values{"offset": {"50"}}}
	if a.String() == b.String() {
		t.Errorf("keys collide: %q", a.String())
	}
}
