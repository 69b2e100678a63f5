package domain

// SLATier is the risk tier derived from a ticket's due time.
type SLATier string

const (
	SLASafe    SLATier = "safe"
	SLAWarning SLATier = "warning"
	SLABreach  SLATier = "breach"
	SLANone    SLATier = "no_sla"
)

// SLAStatus is derived on every read and never persisted.
type SLAStatus struct {
	Tier            SLATier `json:"tier"`
	RemainingMillis *int64  `json:"remaining_millis,omitempty"`
}
