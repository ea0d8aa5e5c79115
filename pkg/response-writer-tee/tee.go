package tee

import (
	"bytes"
	"net/http"
)

// ResponseSaver is a wrapper around http.ResponseWriter that writes the response
// through to the client while saving the body of a 200 response to a buffer.
type ResponseSaver struct {
	rw                http.ResponseWriter
	b                 *bytes.Buffer
	status            int
	wroteHeaders      bool
	err               error
	beforeWriteHeader func(status int, header http.Header)
}

// NewResponseSaver returns a new ResponseSaver writing to w.
// If beforeWriteHeader is not nil, it is called once with the final status code
// and the outgoing header map, right before the headers are sent.
func NewResponseSaver(w http.ResponseWriter, beforeWriteHeader func(status int, header http.Header)) *ResponseSaver {
	return &ResponseSaver{
		rw:                w,
		b:                 &bytes.Buffer{},
		beforeWriteHeader: beforeWriteHeader,
	}
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) WriteHeader(statusCode int) {
	// informational responses are passed on untouched
	if statusCode >= 100 && statusCode < 200 {
		t.rw.WriteHeader(statusCode)
		return
	}
	if t.wroteHeaders {
		return
	}
	t.wroteHeaders = true
	t.status = statusCode
	if t.beforeWriteHeader != nil {
		t.beforeWriteHeader(statusCode, t.rw.Header())
	}
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *ResponseSaver) Write(b []byte) (int, error) {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	if t.status == http.StatusOK {
		t.b.Write(b)
	}
	n, err := t.rw.Write(b)
	if err != nil && t.err == nil {
		t.err = err
	}
	return n, err
}

// Flush implements http.Flusher if the underlying writer does.
func (t *ResponseSaver) Flush() {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
	if f, ok := t.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap is used by http.ResponseController.
func (t *ResponseSaver) Unwrap() http.ResponseWriter {
	return t.rw
}

// Finish sends the headers if the handler did not write anything.
func (t *ResponseSaver) Finish() {
	if !t.wroteHeaders {
		t.WriteHeader(http.StatusOK)
	}
}

// StatusCode returns the status code of the response, or 0 if none was written yet.
func (t *ResponseSaver) StatusCode() int {
	return t.status
}

// Body returns the saved body. It is empty unless the status is 200.
func (t *ResponseSaver) Body() []byte {
	return t.b.Bytes()
}

// Err returns the first error returned by the underlying writer.
func (t *ResponseSaver) Err() error {
	return t.err
}
