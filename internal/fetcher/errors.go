package fetcher

import (
	"fmt"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindStatus    ErrorKind = "status"
	KindNetwork   ErrorKind = "network"
	KindMalformed ErrorKind = "malformed"
)

// FetchError is returned for every failed fetch. The fetcher never retries;
// the caller decides what to fall back to.
type FetchError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
