// pkg/ledger/ledger.go
package ledger

import (
	"context"
	"time"

	"edgegate/pkg/credentials"
)

// Event is one billable or notable credential action attributed to a tenant.
type Event struct {
	TenantID   string             `json:"tenant_id"`
	PlatformID string             `json:"platform_id"`
	Kind       string             `json:"kind"`
	Source     credentials.Source `json:"source,omitempty"`
	Detail     map[string]any     `json:"detail,omitempty"`
	At         time.Time          `json:"at"`
}

// Event kinds.
const (
	KindUsage    = "usage"
	KindFailover = "failover"
	KindLinked   = "linked"
	KindIntake   = "intake"
)

// Recorder delivers events to the billing ledger. Implementations must not
// block resolution longer than their client timeout.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Fanout records to every recorder, returning the first error after all
// have been attempted.
type Fanout []Recorder

func (f Fanout) Record(ctx context.Context, e Event) error {
	var first error
	for _, r := range f {
		if err := r.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
