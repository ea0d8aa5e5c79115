package outputcache

import "fmt"

type CacheStatusStatus string

const (
	CacheStatusHit CacheStatusStatus = "hit"
	CacheStatusFwd CacheStatusStatus = "fwd"
)

type CacheStatusFwdReason string

const (
	// The cache was configured to not handle this request.
	CacheStatusFwdBypass CacheStatusFwdReason = "bypass"

	// The cache did not contain any responses that matched the
	// request URI.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"

	// The cache contained a response that matched the request,
	// but it could not be read.
	CacheStatusFwdMiss CacheStatusFwdReason = "miss"
)

// CacheStatus describes how a response was produced, in RFC 9211 terms.
type CacheStatus struct {
	status    CacheStatusStatus
	detail    string
	fwdReason CacheStatusFwdReason
	stored    bool
	ttl       int
}

func (cs *CacheStatus) Hit() {
	cs.status = CacheStatusHit
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.status = CacheStatusFwd
	cs.fwdReason = reason
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

// Stored marks the forwarded response as going to be stored.
func (cs *CacheStatus) Stored() {
	cs.stored = true
}

// TTL sets the remaining freshness in seconds.
func (cs *CacheStatus) TTL(seconds int) {
	cs.ttl = seconds
}

// Outcome is the label used for logs and metrics.
func (cs *CacheStatus) Outcome() string {
	switch {
	case cs.status == CacheStatusHit && cs.detail != "":
		return cs.detail
	case cs.status == CacheStatusHit:
		return string(CacheStatusHit)
	case cs.fwdReason == CacheStatusFwdBypass:
		return string(CacheStatusFwdBypass)
	default:
		return "miss"
	}
}

func (cs *CacheStatus) String() string {
	status := fmt.Sprintf("OutputCache; %s", cs.status)
	if cs.status == CacheStatusFwd && cs.fwdReason != "" {
		status = fmt.Sprintf("%s=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status += "; stored"
	}
	if cs.ttl > 0 {
		status = fmt.Sprintf("%s; ttl=%d", status, cs.ttl)
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}
