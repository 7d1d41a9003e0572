// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// BasicScheme is the Authorization header prefix for HTTP Basic auth.
const BasicScheme = "Basic "

// CredentialSeparator separates the user from the password in a decoded
// Basic auth payload.
const CredentialSeparator = ":"

// ParseScheme returns the part of header that follows scheme.
// It reports false when the header is empty or carries another scheme.
func ParseScheme(header, scheme string) (string, bool) {
	if header == "" {
		return "", false
	}
	return strings.CutPrefix(header, scheme)
}

// DecodeBase64 decodes a standard base64 payload as UTF-8 text.
// Invalid encodings and invalid text both report false.
func DecodeBase64(token string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits a decoded payload into user and password at the
// first separator, so passwords may themselves contain ':'.
func SplitCredentials(decoded string) (user, pass string, ok bool) {
	return strings.Cut(decoded, CredentialSeparator)
}
