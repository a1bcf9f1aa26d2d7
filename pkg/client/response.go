package client

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a fully buffered upstream response. Deduplicated GET callers
// each receive their own copy.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie

	// Method and Endpoint identify the logical request.
	Method   string
	Endpoint string

	// Attempts is the number of dispatches it took to get this response.
	Attempts int
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.Method, r.Endpoint, err)
	}
	return nil
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	if r.Cookies != nil {
		c.Cookies = make([]*http.Cookie, len(r.Cookies))
		for i, ck := range r.Cookies {
			cp := *ck
			c.Cookies[i] = &cp
		}
	}
	return &c
}
