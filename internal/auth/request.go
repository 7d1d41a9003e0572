// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "net/http"

// AuthorizationHeaderName is the header carrying Basic credentials.
const AuthorizationHeaderName = "Authorization"

// Request is the inbound request capability strategies need.
type Request interface {
	// Header returns the named header value, if present.
	Header(name string) (string, bool)

	// Cookie returns the named cookie value, if present.
	Cookie(name string) (string, bool)
}

// HTTPRequest adapts *http.Request to Request.
type HTTPRequest struct {
	req *http.Request
}

// NewHTTPRequest wraps r. A nil r yields a Request with no headers or cookies.
func NewHTTPRequest(r *http.Request) HTTPRequest {
	return HTTPRequest{req: r}
}

// Header returns the first value of the named header.
func (r HTTPRequest) Header(name string) (string, bool) {
	if r.req == nil {
		return "", false
	}
	values := r.req.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Cookie returns the value of the named cookie.
func (r HTTPRequest) Cookie(name string) (string, bool) {
	if r.req == nil || name == "" {
		return "", false
	}
	c, err := r.req.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}

// StaticRequest is a Request backed by plain maps. The CLI uses it to build
// synthetic requests.
type StaticRequest struct {
	Headers map[string]string
	Cookies map[string]string
}

// Header returns the named header value.
func (r StaticRequest) Header(name string) (string, bool) {
	v, ok := r.Headers[http.CanonicalHeaderKey(name)]
	if !ok {
		v, ok = r.Headers[name]
	}
	return v, ok
}

// Cookie returns the named cookie value.
func (r StaticRequest) Cookie(name string) (string, bool) {
	v, ok := r.Cookies[name]
	return v, ok
}

var (
	_ Request = HTTPRequest{}
	_ Request = StaticRequest{}
)
