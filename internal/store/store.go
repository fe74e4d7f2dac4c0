package store

import (
	"context"

	"github.com/seantiz/runbroker/internal/model"
)

// AuditSink receives the write-once record of each execution. Records are
// never updated or deleted.
type AuditSink interface {
	Append(ctx context.Context, rec *model.AuditRecord) error
}

// ExecutionStats holds aggregate execution statistics.
type ExecutionStats struct {
	Total           int            `json:"total"`
	CountByKind     map[string]int `json:"count_by_kind"`
	CountByLanguage map[string]int `json:"count_by_language"`
	AvgDurationMS   float64        `json:"avg_duration_ms"`
}

// Store is the audit sink plus the read-side queries used by the HTTP API.
type Store interface {
	AuditSink
	GetExecution(ctx context.Context, id string) (*model.AuditRecord, error)
	ListExecutions(ctx context.Context, limit, offset int) ([]*model.AuditRecord, int, error)
	GetExecutionStats(ctx context.Context) (*ExecutionStats, error)
	Close() error
}
