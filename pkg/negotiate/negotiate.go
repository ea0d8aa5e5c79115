// Package negotiate selects the media type a response will be produced in.
package negotiate

import (
	"net/http"

	"github.com/munnerz/goautoneg"
)

const DefaultMediaType = "application/json"

// Negotiator resolves the media type a handler is expected to respond with.
type Negotiator interface {
	Negotiate(r *http.Request) string
}

// Accept negotiates against the Accept request header.
type Accept struct {
	// Media types the handlers can produce, in order of preference.
	// The first one is used when nothing acceptable is offered.
	Available []string
}

func NewAccept(available ...string) Accept {
	if len(available) == 0 {
		available = []string{DefaultMediaType}
	}
	return Accept{Available: available}
}

func (a Accept) Negotiate(r *http.Request) string {
	if len(a.Available) == 0 {
		return DefaultMediaType
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		if mt := goautoneg.Negotiate(accept, a.Available); mt != "" {
			return mt
		}
	}
	return a.Available[0]
}

// MediaTypes returns the media types responses may be stored in.
func (a Accept) MediaTypes() []string {
	if len(a.Available) == 0 {
		return []string{DefaultMediaType}
	}
	return a.Available
}

// Func adapts a function to the Negotiator interface.
type Func func(r *http.Request) string

func (f Func) Negotiate(r *http.Request) string {
	return f(r)
}
