package stores

import (
	"context"
	"time"
)

// RunStatus represents the status of a provisioning run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run represents one invocation of the reconciler
type Run struct {
	ID          string     `json:"id"`
	Scope       string     `json:"scope"`   // host, container, all
	Series      string     `json:"series"`  // resolved target series, e.g. "6.4"
	Version     string     `json:"version"` // fully resolved version, e.g. "6.4.3"
	Force       bool       `json:"force"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ActionRecord represents the journaled outcome of a single plan unit
type ActionRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Resource  string    `json:"resource"` // e.g. "rocm-userland", "artifact:Dockerfile"
	Kind      string    `json:"kind"`
	Observed  string    `json:"observed"` // absent, present-matching, present-mismatched
	Action    string    `json:"action"`   // skip, install, reinstall, add-to-group, write-file
	Status    string    `json:"status"`   // applied, skipped, warned, failed
	Message   *string   `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Fact represents a cached host observation
type Fact struct {
	ID        string     `json:"id"`
	Namespace string     `json:"namespace"` // e.g. "host.profile", "host.driver"
	Key       string     `json:"key"`
	Value     string     `json:"value"` // JSON blob
	TTL       int        `json:"ttl"`   // seconds, 0 = no expiry
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store defines the interface for the run journal
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// Action operations
	CreateAction(ctx context.Context, record *ActionRecord) error
	ListActionsByRun(ctx context.Context, runID string) ([]*ActionRecord, error)

	// Fact operations
	UpsertFact(ctx context.Context, fact *Fact) error
	GetFact(ctx context.Context, namespace, key string) (*Fact, error)
	DeleteExpiredFacts(ctx context.Context) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
