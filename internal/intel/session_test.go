package intel

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

// fakeScanner is a canned schemas.Scanner for exercising the session layer in
// isolation.
type fakeScanner struct {
	scanErr     error
	history     []schemas.ScanHistoryEntry
	rate        schemas.RateLimitInfo
	deleted     []string
	cacheCleans int
}

func (f *fakeScanner) ScanIndicator(_ context.Context, req schemas.ScanRequest) (schemas.AnalysisResult, error) {
	if f.scanErr != nil {
		return schemas.AnalysisResult{}, f.scanErr
	}
	return schemas.AnalysisResult{IOC: req.Indicator, IOCType: req.Type, Found: true}, nil
}

func (f *fakeScanner) ScanMultiple(ctx context.Context, reqs []schemas.ScanRequest) []schemas.AnalysisResult {
	out := make([]schemas.AnalysisResult, 0, len(reqs))
	for _, req := range reqs {
		result, err := f.ScanIndicator(ctx, req)
		if err != nil {
			continue
		}
		out = append(out, result)
	}
	return out
}

func (f *fakeScanner) History(context.Context, int) ([]schemas.ScanHistoryEntry, error) {
	return f.history, nil
}

func (f *fakeScanner) DeleteHistory(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	for i, entry := range f.history {
		if entry.ID == id {
			f.history = append(f.history[:i], f.history[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeScanner) ClearCache() { f.cacheCleans++ }

func (f *fakeScanner) RateLimit() schemas.RateLimitInfo { return f.rate }

func TestSessionScanPrependsResults(t *testing.T) {
	s := NewSession(&fakeScanner{}, 50)
	ctx := context.Background()

	_, err := s.Scan(ctx, schemas.ScanRequest{Indicator: "first", Type: schemas.IndicatorDomain})
	require.NoError(t, err)
	_, err = s.Scan(ctx, schemas.ScanRequest{Indicator: "second", Type: schemas.IndicatorDomain})
	require.NoError(t, err)

	results := s.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].IOC, "newest result comes first")
	assert.Equal(t, "first", results[1].IOC)
	assert.NoError(t, s.Err())
	assert.False(t, s.Scanning())
}

func TestSessionScanErrorIsRetained(t *testing.T) {
	fake := &fakeScanner{}
	s := NewSession(fake, 50)
	ctx := context.Background()

	_, err := s.Scan(ctx, schemas.ScanRequest{Indicator: "ok", Type: schemas.IndicatorIP})
	require.NoError(t, err)

	fake.scanErr = fmt.Errorf("upstream unavailable")
	_, err = s.Scan(ctx, schemas.ScanRequest{Indicator: "bad", Type: schemas.IndicatorIP})
	require.Error(t, err)

	assert.Error(t, s.Err())
	assert.Len(t, s.Results(), 1, "a failed scan adds no result")

	// The next successful scan clears the retained error.
	fake.scanErr = nil
	_, err = s.Scan(ctx, schemas.ScanRequest{Indicator: "ok2", Type: schemas.IndicatorIP})
	require.NoError(t, err)
	assert.NoError(t, s.Err())
}

func TestSessionScanBatch(t *testing.T) {
	s := NewSession(&fakeScanner{}, 50)
	ctx := context.Background()

	_, err := s.Scan(ctx, schemas.ScanRequest{Indicator: "old", Type: schemas.IndicatorDomain})
	require.NoError(t, err)

	batch := s.ScanBatch(ctx, []schemas.ScanRequest{
		{Indicator: "a", Type: schemas.IndicatorIP},
		{Indicator: "b", Type: schemas.IndicatorIP},
	})
	require.Len(t, batch, 2)

	results := s.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].IOC)
	assert.Equal(t, "b", results[1].IOC)
	assert.Equal(t, "old", results[2].IOC)
}

func TestSessionReloadRefreshesSnapshots(t *testing.T) {
	fake := &fakeScanner{
		rate: schemas.RateLimitInfo{Remaining: 4},
	}
	s := NewSession(fake, 50)
	assert.Equal(t, 4, s.RateLimit().Remaining)
	assert.Empty(t, s.History())

	fake.history = []schemas.ScanHistoryEntry{{ID: "h1", Indicator: "x"}}
	fake.rate = schemas.RateLimitInfo{Remaining: 3, ResetAt: time.Now().Add(time.Minute)}
	s.Reload(context.Background())

	require.Len(t, s.History(), 1)
	assert.Equal(t, "h1", s.History()[0].ID)
	assert.Equal(t, 3, s.RateLimit().Remaining)
}

func TestSessionClearResultsKeepsHistory(t *testing.T) {
	fake := &fakeScanner{history: []schemas.ScanHistoryEntry{{ID: "h1"}}}
	s := NewSession(fake, 50)
	ctx := context.Background()

	_, err := s.Scan(ctx, schemas.ScanRequest{Indicator: "x", Type: schemas.IndicatorDomain})
	require.NoError(t, err)
	require.NotEmpty(t, s.Results())

	s.ClearResults()
	assert.Empty(t, s.Results())
	assert.NoError(t, s.Err())
	assert.Len(t, s.History(), 1, "clearing results leaves persisted history alone")
}

func TestSessionClearCacheDelegates(t *testing.T) {
	fake := &fakeScanner{}
	s := NewSession(fake, 50)

	s.ClearCache()
	assert.Equal(t, 1, fake.cacheCleans)
}

func TestSessionDeleteFromHistory(t *testing.T) {
	fake := &fakeScanner{history: []schemas.ScanHistoryEntry{{ID: "h1"}, {ID: "h2"}}}
	s := NewSession(fake, 50)
	s.Reload(context.Background())
	require.Len(t, s.History(), 2)

	require.NoError(t, s.DeleteFromHistory(context.Background(), "h1"))

	assert.Equal(t, []string{"h1"}, fake.deleted)
	require.Len(t, s.History(), 1)
	assert.Equal(t, "h2", s.History()[0].ID)
}

func TestSessionResultsReturnsCopy(t *testing.T) {
	s := NewSession(&fakeScanner{}, 50)
	_, err := s.Scan(context.Background(), schemas.ScanRequest{Indicator: "x", Type: schemas.IndicatorDomain})
	require.NoError(t, err)

	got := s.Results()
	got[0].IOC = "mutated"
	assert.Equal(t, "x", s.Results()[0].IOC)
}
