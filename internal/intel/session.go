// File: internal/intel/session.go
package intel

import (
	"context"
	"sync"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

// Session holds the transient per-session scan state: the results produced
// so far (newest first), a snapshot of the persisted history, the latest
// rate-limit reading, and the last error. It delegates every storage write
// to the Service and never touches the cache or history store directly.
type Session struct {
	svc schemas.Scanner

	mu       sync.Mutex
	scanning bool
	lastErr  error
	results  []schemas.AnalysisResult
	history  []schemas.ScanHistoryEntry
	rate     schemas.RateLimitInfo
	limit    int
}

// NewSession wraps a scanner. Call Reload to populate the history snapshot.
func NewSession(svc schemas.Scanner, historyLimit int) *Session {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Session{
		svc:   svc,
		rate:  svc.RateLimit(),
		limit: historyLimit,
	}
}

// Scan runs one lookup, prepends the result, and refreshes the history and
// rate-limit snapshots. The returned error is also retained for Err.
func (s *Session) Scan(ctx context.Context, req schemas.ScanRequest) (schemas.AnalysisResult, error) {
	s.setScanning(true)
	defer s.setScanning(false)

	result, err := s.svc.ScanIndicator(ctx, req)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.results = append([]schemas.AnalysisResult{result}, s.results...)
	}
	s.mu.Unlock()

	s.Reload(ctx)
	if err != nil {
		return schemas.AnalysisResult{}, err
	}
	return result, nil
}

// ScanBatch runs the requests sequentially through the service's paced batch
// path and prepends the successes.
func (s *Session) ScanBatch(ctx context.Context, reqs []schemas.ScanRequest) []schemas.AnalysisResult {
	s.setScanning(true)
	defer s.setScanning(false)

	results := s.svc.ScanMultiple(ctx, reqs)

	s.mu.Lock()
	s.results = append(append([]schemas.AnalysisResult{}, results...), s.results...)
	s.lastErr = nil
	s.mu.Unlock()

	s.Reload(ctx)
	return results
}

// Reload refreshes the history and rate-limit snapshots.
func (s *Session) Reload(ctx context.Context) {
	history, _ := s.svc.History(ctx, s.limit)
	info := s.svc.RateLimit()

	s.mu.Lock()
	s.history = history
	s.rate = info
	s.mu.Unlock()
}

// ClearResults discards the session-local result list. The cache and the
// persisted history are untouched.
func (s *Session) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
	s.lastErr = nil
}

// ClearCache empties the service's result cache.
func (s *Session) ClearCache() {
	s.svc.ClearCache()
	info := s.svc.RateLimit()

	s.mu.Lock()
	s.rate = info
	s.mu.Unlock()
}

// DeleteFromHistory removes one persisted entry and refreshes the snapshot.
func (s *Session) DeleteFromHistory(ctx context.Context, id string) error {
	if err := s.svc.DeleteHistory(ctx, id); err != nil {
		return err
	}
	s.Reload(ctx)
	return nil
}

// Scanning reports whether a scan is in flight.
func (s *Session) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// Err returns the error from the most recent scan, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Results returns the session results, most recent first.
func (s *Session) Results() []schemas.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.AnalysisResult, len(s.results))
	copy(out, s.results)
	return out
}

// History returns the current history snapshot.
func (s *Session) History() []schemas.ScanHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schemas.ScanHistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// RateLimit returns the latest rate-limit snapshot.
func (s *Session) RateLimit() schemas.RateLimitInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

func (s *Session) setScanning(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = v
}
