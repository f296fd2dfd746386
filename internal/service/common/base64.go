package common

import (
	"encoding/base64"
	"fmt"
)

// EncodePageToken turns a driver paging state into an opaque URL-safe token.
// An empty state encodes to "".
func EncodePageToken(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePageToken reverses EncodePageToken. An empty token is the first page.
func DecodePageToken(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	state, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	return state, nil
}
