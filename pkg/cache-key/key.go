package cachekey

import (
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedKey = errors.New("malformed cache key")

const (
	namespaceSeparator = ":"
	mediaTypeSeparator = ":"
	// a tab cannot appear in a request URI, so suffixed keys never collide with base keys
	suffixSeparator = "\t"

	etagSuffix        = suffixSeparator + "etag"
	contentTypeSuffix = suffixSeparator + "content-type"
)

type CacheKeyer struct {
	// Optional prefix isolating applications sharing one store.
	Namespace string
}

func NewCacheKeyer(namespace string) CacheKeyer {
	return CacheKeyer{Namespace: namespace}
}

// Key returns the cache key for a request path, its raw query and the negotiated media type.
// When excludeQuery is set the query does not take part in the key.
// Neither path nor query is normalized.
func (c CacheKeyer) Key(path, query, mediaType string, excludeQuery bool) string {
	var b strings.Builder
	b.Grow(len(c.Namespace) + len(path) + len(query) + len(mediaType) + 3)
	if c.Namespace != "" {
		b.WriteString(c.Namespace)
		b.WriteString(namespaceSeparator)
	}
	b.WriteString(path)
	if !excludeQuery && query != "" {
		b.WriteString("?")
		b.WriteString(query)
	}
	b.WriteString(mediaTypeSeparator)
	b.WriteString(mediaType)
	return b.String()
}

// ETagKey returns the key the entity tag of an entry is stored under.
func ETagKey(key string) string {
	return key + etagSuffix
}

// ContentTypeKey returns the key the content type of an entry is stored under.
func ContentTypeKey(key string) string {
	return key + contentTypeSuffix
}

// EntryKeys returns all keys making up one cache entry, body key last.
func EntryKeys(key string) []string {
	return []string{ContentTypeKey(key), ETagKey(key), key}
}

// MediaType returns the media type a key was built with.
func MediaType(key string) (string, error) {
	i := strings.LastIndex(key, mediaTypeSeparator)
	if i < 0 || i == len(key)-1 || strings.Contains(key, suffixSeparator) {
		return "", fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return key[i+1:], nil
}
