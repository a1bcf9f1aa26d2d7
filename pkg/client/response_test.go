package client

import (
	"net/http"
	"testing"
)

func TestResponse_JSON(t *testing.T) {
	resp := &Response{Body: []byte(`{"id":"usr_1","displayName":"Bob"}`), Method: "GET", Endpoint: "/users/usr_1"}

	var user struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	}
	if err := resp.JSON(&user); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if user.ID != "usr_1" || user.DisplayName != "Bob" {
		t.Errorf("decoded = %+v", user)
	}

	bad := &Response{Body: []byte(`not json`), Method: "GET", Endpoint: "/users/usr_1"}
	if err := bad.JSON(&user); err == nil {
		t.Error("JSON() on invalid body returned nil error")
	}
}

func TestResponse_OK(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{204, true},
		{301, false},
		{404, false},
		{500, false},
	}
	for _, tt := range tests {
		if got := (&Response{StatusCode: tt.status}).OK(); got != tt.want {
			t.Errorf("OK() for %d = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestResponse_CloneIsIndependent(t *testing.T) {
	orig := &Response{
		StatusCode: 200,
		Header:     http.Header{"X-Test": {"a"}},
		Body:       []byte("abc"),
		Cookies:    []*http.Cookie{{Name: "auth", Value: "v1"}},
		Method:     "GET",
		Endpoint:   "/x",
		Attempts:   2,
	}

	c := orig.clone()
	c.Header.Set("X-Test", "b")
	c.Body[0] = 'z'
	c.Cookies[0].Value = "v2"

	if orig.Header.Get("X-Test") != "a" {
		t.Error("clone shares header")
	}
	if string(orig.Body) != "abc" {
		t.Error("clone shares body")
	}
	if orig.Cookies[0].Value != "v1" {
		t.Error("clone shares cookies")
	}
	if c.StatusCode != 200 || c.Attempts != 2 || c.Endpoint != "/x" {
		t.Errorf("clone lost fields: %+v", c)
	}
}

func TestSessionCookies(t *testing.T) {
	cookies := []*http.Cookie{{Name: "auth"}, {Name: "other"}, {Name: "twoFactorAuth"}}

	got := sessionCookies(cookies, DefaultSessionCookies)
	if len(got) != 2 || got[0].Name != "auth" || got[1].Name != "twoFactorAuth" {
		t.Errorf("sessionCookies(default) = %v", got)
	}
	if got := sessionCookies(cookies, nil); len(got) != 3 {
		t.Errorf("sessionCookies(nil) = %d cookies, want 3", len(got))
	}
	if got := sessionCookies(cookies, []string{"missing"}); len(got) != 0 {
		t.Errorf("sessionCookies(missing) = %v, want none", got)
	}
}
