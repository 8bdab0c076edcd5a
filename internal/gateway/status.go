package gateway

import "strings"

// Status is the closed set the rest of the system branches on. The aggregator
// reports free-text statuses; they are normalized here, at the boundary, and
// never matched on raw strings past this point.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var statusWords = map[string]Status{
	"success":    StatusSuccess,
	"successful": StatusSuccess,
	"completed":  StatusSuccess,
	"complete":   StatusSuccess,
	"paid":       StatusSuccess,

	"fail":      StatusFailed,
	"failed":    StatusFailed,
	"failure":   StatusFailed,
	"reject":    StatusFailed,
	"rejected":  StatusFailed,
	"cancel":    StatusFailed,
	"cancelled": StatusFailed,
	"canceled":  StatusFailed,
	"declined":  StatusFailed,
	"error":     StatusFailed,
	"expired":   StatusFailed,

	"pending":     StatusPending,
	"processing":  StatusPending,
	"in_progress": StatusPending,
	"initiated":   StatusPending,
	"created":     StatusPending,
	"new":         StatusPending,
	"waiting":     StatusPending,
}

// NormalizeStatus maps a raw gateway status string to the closed enum. An
// absent status means the gateway could not identify the payment and counts as
// a failure; an unrecognized non-empty status stays Unknown so the caller
// parks the transaction in PROCESSING instead of guessing.
func NormalizeStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusFailed
	}
	if st, ok := statusWords[s]; ok {
		return st
	}
	return StatusUnknown
}
