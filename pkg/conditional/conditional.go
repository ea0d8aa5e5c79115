// Package conditional evaluates If-None-Match request headers against the
// entity tag of a stored response.
package conditional

import (
	"net/http"
	"strings"
)

type Result int

const (
	// The request carried no usable If-None-Match header.
	NoConditionalHeader Result = iota
	// None of the presented tags equals the stored one.
	NoMatch
	// A presented tag equals the stored one; respond with 304 Not Modified.
	Match
)

func (r Result) String() string {
	switch r {
	case Match:
		return "match"
	case NoMatch:
		return "no-match"
	default:
		return "no-conditional-header"
	}
}

// Quote returns tag as a quoted entity tag, dropping any quotes inside it.
func Quote(tag string) string {
	return `"` + strings.ReplaceAll(tag, `"`, "") + `"`
}

// Unquote strips the weak prefix and the surrounding quotes of an entity tag.
// It returns false if the value is not an entity tag.
func Unquote(tag string) (string, bool) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "W/")
	if len(tag) < 2 || tag[0] != '"' || tag[len(tag)-1] != '"' {
		return "", false
	}
	opaque := tag[1 : len(tag)-1]
	if strings.Contains(opaque, `"`) {
		return "", false
	}
	return opaque, true
}

// Tags returns the unquoted entity tags presented in If-None-Match.
// It returns nil if the header is absent or malformed.
func Tags(h http.Header) []string {
	var tags []string
	for _, value := range h.Values("If-None-Match") {
		for _, field := range splitList(value) {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			if field == "*" {
				tags = append(tags, field)
				continue
			}
			tag, ok := Unquote(field)
			if !ok {
				return nil
			}
			tags = append(tags, tag)
		}
	}
	return tags
}

// splitList splits a header list on commas outside quoted strings.
// An entity tag may itself contain a comma.
func splitList(value string) []string {
	var fields []string
	quoted := false
	start := 0
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				fields = append(fields, value[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, value[start:])
}

// Evaluate compares presented tags with the stored tag.
// An empty stored tag means the entry has none.
// Tags are compared by exact equality once quotes are stripped from both sides.
func Evaluate(presented []string, stored string) Result {
	if len(presented) == 0 {
		return NoConditionalHeader
	}
	if unquoted, ok := Unquote(stored); ok {
		stored = unquoted
	}
	if stored == "" {
		return NoMatch
	}
	for _, tag := range presented {
		if tag == stored {
			return Match
		}
	}
	return NoMatch
}

// Check evaluates the If-None-Match header of h against the stored tag.
func Check(h http.Header, stored string) Result {
	return Evaluate(Tags(h), stored)
}
