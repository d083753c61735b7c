package schemas

import (
	"context"
)

// -- Store Interface --

// HistoryStore defines a persistent, append-ordered store of completed scans.
// This abstraction keeps the orchestrator independent of the storage engine;
// the production implementation sits on an embedded SQLite database.
type HistoryStore interface {
	// SaveScan upserts a history entry keyed by its ID.
	SaveScan(ctx context.Context, entry ScanHistoryEntry) error
	// GetScans returns up to limit entries, most recent first.
	GetScans(ctx context.Context, limit int) ([]ScanHistoryEntry, error)
	// DeleteScan removes a single entry by ID.
	DeleteScan(ctx context.Context, id string) error
	// ClearScans removes every entry.
	ClearScans(ctx context.Context) error
}

// -- Cache Interface --

// ResultCache is a fixed-TTL cache of analysis results keyed by
// "{type}:{lowercased indicator}". Entries are evicted lazily on read.
type ResultCache interface {
	Get(key string) (AnalysisResult, bool)
	Set(key string, result AnalysisResult)
	Delete(key string)
	Clear()
	Keys() []string
	Len() int
}

// -- Quota Interface --

// QuotaTracker tracks the remaining upstream request budget. It is advisory
// client-side throttling only; the upstream still enforces its own quota.
type QuotaTracker interface {
	// CanProceed reports whether a request may be attempted, resetting the
	// window first if it has expired.
	CanProceed() bool
	// Consume records one locally-initiated request against the budget.
	Consume()
	// UpdateFromResponse applies authoritative header values. Either argument
	// may be empty, in which case local bookkeeping stands.
	UpdateFromResponse(remaining, reset string)
	// Info returns a snapshot of the current state.
	Info() RateLimitInfo
}

// -- Scanner Interface --

// Scanner is the single-operation contract the session layer depends on.
type Scanner interface {
	ScanIndicator(ctx context.Context, req ScanRequest) (AnalysisResult, error)
	ScanMultiple(ctx context.Context, reqs []ScanRequest) []AnalysisResult
	History(ctx context.Context, limit int) ([]ScanHistoryEntry, error)
	DeleteHistory(ctx context.Context, id string) error
	ClearCache()
	RateLimit() RateLimitInfo
}
