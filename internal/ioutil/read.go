package ioutil

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

// SnippetLimit bounds how much of an upstream body goes into logs and errors
const SnippetLimit = 512

// ReadLimited reads up to limit bytes from r and returns the content as a string.
// A read failure is described in the returned string rather than dropped.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}

// Snippet returns at most SnippetLimit bytes of an already buffered body,
// cut on a rune boundary and marked when truncated
func Snippet(b []byte) string {
	if len(b) <= SnippetLimit {
		return string(b)
	}
	s := ReadLimited(bytes.NewReader(b), SnippetLimit)
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s + "...(truncated)"
}
