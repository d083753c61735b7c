// File: internal/intel/service.go

// Package intel composes the classifier, memory cache, quota tracker,
// upstream client, normalizer, and history store into the indicator scanning
// service.
package intel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/iocscope/api/schemas"
	"github.com/xkilldash9x/iocscope/internal/vtapi"
)

const (
	relationshipLimit = 10
	behaviourLimit    = 2
	searchLimit       = 5
)

// Options tunes a Service beyond its injected collaborators.
type Options struct {
	// GUIBaseURL is the upstream web UI root used for permalinks.
	GUIBaseURL string
	// HistoryLimit bounds the default history listing.
	HistoryLimit int
	// BatchDelay is the minimum spacing between batch scan requests.
	BatchDelay time.Duration
}

// Service is the scan orchestrator. It exclusively owns the quota tracker
// and drives all writes to the cache and the history store.
type Service struct {
	client     *vtapi.Client
	cache      schemas.ResultCache
	store      schemas.HistoryStore
	quota      schemas.QuotaTracker
	normalizer *Normalizer
	log        *zap.Logger
	opts       Options

	pace *rate.Limiter

	// persistWG tracks in-flight best-effort history writes so Flush can
	// wait for them, mainly in tests and on shutdown.
	persistWG sync.WaitGroup
}

// New creates a Service. The history store may be nil, which disables
// persistence; every other collaborator is required.
func New(client *vtapi.Client, cache schemas.ResultCache, store schemas.HistoryStore, quota schemas.QuotaTracker, logger *zap.Logger, opts Options) (*Service, error) {
	if client == nil || cache == nil || quota == nil {
		return nil, fmt.Errorf("cannot initialize scan service with nil dependencies")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = 15 * time.Second
	}

	return &Service{
		client:     client,
		cache:      cache,
		store:      store,
		quota:      quota,
		normalizer: NewNormalizer(opts.GUIBaseURL),
		log:        logger.Named("intel"),
		opts:       opts,
		pace:       rate.NewLimiter(rate.Every(opts.BatchDelay), 1),
	}, nil
}

// CacheKey builds the cache key for an indicator lookup.
func CacheKey(indicator string, indType schemas.IndicatorType) string {
	return string(indType) + ":" + strings.ToLower(indicator)
}

// ScanIndicator runs one reputation lookup. The cache check strictly precedes
// the quota check, which strictly precedes any network traffic. A cache hit
// short-circuits both the network call and quota consumption.
func (s *Service) ScanIndicator(ctx context.Context, req schemas.ScanRequest) (schemas.AnalysisResult, error) {
	key := CacheKey(req.Indicator, req.Type)

	if !req.IncludeRelationships {
		if cached, ok := s.cache.Get(key); ok {
			s.log.Debug("Cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	if !s.quota.CanProceed() {
		info := s.quota.Info()
		return schemas.AnalysisResult{}, fmt.Errorf("%w; resets at %s",
			vtapi.ErrRateLimited, info.ResetAt.Format(time.RFC3339))
	}

	var (
		result schemas.AnalysisResult
		err    error
	)
	switch req.Type {
	case schemas.IndicatorHash:
		result, err = s.scanHash(ctx, req.Indicator, req.IncludeRelationships)
	case schemas.IndicatorIP:
		result, err = s.scanIP(ctx, req.Indicator, req.IncludeRelationships)
	case schemas.IndicatorDomain:
		result, err = s.scanDomain(ctx, req.Indicator, req.IncludeRelationships)
	case schemas.IndicatorURL:
		result, err = s.scanURL(ctx, req.Indicator)
	case schemas.IndicatorFilename:
		result, err = s.searchFilename(ctx, req.Indicator)
	default:
		return schemas.AnalysisResult{}, fmt.Errorf("unsupported indicator type: %q", req.Type)
	}
	if err != nil {
		s.log.Warn("Scan failed",
			zap.String("indicator", req.Indicator),
			zap.String("type", string(req.Type)),
			zap.Error(err),
		)
		return schemas.AnalysisResult{}, err
	}

	// Cache unconditionally, including relationship-augmented results, so a
	// later non-relationship request for the same indicator is free.
	s.cache.Set(key, result)

	s.persistHistory(req, result)

	return result, nil
}

// ScanMultiple runs requests strictly sequentially, paced to respect the
// upstream per-minute budget. A failing indicator is logged and skipped; it
// never aborts the batch. The successful results are returned in order.
func (s *Service) ScanMultiple(ctx context.Context, reqs []schemas.ScanRequest) []schemas.AnalysisResult {
	results := make([]schemas.AnalysisResult, 0, len(reqs))
	for _, req := range reqs {
		if err := s.pace.Wait(ctx); err != nil {
			s.log.Warn("Batch scan aborted", zap.Error(err))
			break
		}
		result, err := s.ScanIndicator(ctx, req)
		if err != nil {
			s.log.Warn("Skipping failed indicator in batch",
				zap.String("indicator", req.Indicator), zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results
}

// History returns up to limit persisted entries, newest first. Storage
// failures degrade to an empty history; they are never fatal.
func (s *Service) History(ctx context.Context, limit int) ([]schemas.ScanHistoryEntry, error) {
	if s.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	entries, err := s.store.GetScans(ctx, limit)
	if err != nil {
		s.log.Warn("Failed to load scan history", zap.Error(err))
		return nil, nil
	}
	return entries, nil
}

// DeleteHistory removes one persisted entry by id.
func (s *Service) DeleteHistory(ctx context.Context, id string) error {
	if s.store == nil {
		return nil
	}
	return s.store.DeleteScan(ctx, id)
}

// ClearHistory removes every persisted entry.
func (s *Service) ClearHistory(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.store.ClearScans(ctx)
}

// ClearCache empties the in-memory result cache.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// CacheKeys lists the keys currently cached.
func (s *Service) CacheKeys() []string {
	return s.cache.Keys()
}

// RateLimit returns a snapshot of the quota tracker.
func (s *Service) RateLimit() schemas.RateLimitInfo {
	return s.quota.Info()
}

// Flush waits for in-flight history writes to settle.
func (s *Service) Flush() {
	s.persistWG.Wait()
}

// -- type-specific scan paths --

func (s *Service) scanHash(ctx context.Context, hash string, includeRelationships bool) (schemas.AnalysisResult, error) {
	var resp vtapi.ObjectResponse
	raw, err := s.fetch(ctx, "/files/"+hash, nil, &resp)
	if err != nil {
		if vtapi.IsNotFound(err) {
			return s.normalizer.NotFoundResult(hash, schemas.IndicatorHash), nil
		}
		return schemas.AnalysisResult{}, err
	}

	result := s.normalizer.ParseFileResponse(resp, raw, hash)
	if includeRelationships {
		s.enrichHash(ctx, hash, &result)
	}
	return result, nil
}

func (s *Service) scanIP(ctx context.Context, ip string, includeRelationships bool) (schemas.AnalysisResult, error) {
	var resp vtapi.ObjectResponse
	raw, err := s.fetch(ctx, "/ip_addresses/"+ip, nil, &resp)
	if err != nil {
		if vtapi.IsNotFound(err) {
			return s.normalizer.NotFoundResult(ip, schemas.IndicatorIP), nil
		}
		return schemas.AnalysisResult{}, err
	}

	result := s.normalizer.ParseIPResponse(resp, raw, ip)
	if includeRelationships {
		s.enrichIP(ctx, ip, &result)
	}
	return result, nil
}

func (s *Service) scanDomain(ctx context.Context, domain string, includeRelationships bool) (schemas.AnalysisResult, error) {
	var resp vtapi.ObjectResponse
	raw, err := s.fetch(ctx, "/domains/"+domain, nil, &resp)
	if err != nil {
		if vtapi.IsNotFound(err) {
			return s.normalizer.NotFoundResult(domain, schemas.IndicatorDomain), nil
		}
		return schemas.AnalysisResult{}, err
	}

	result := s.normalizer.ParseDomainResponse(resp, raw, domain)
	if includeRelationships {
		s.enrichDomain(ctx, domain, &result)
	}
	return result, nil
}

func (s *Service) scanURL(ctx context.Context, rawURL string) (schemas.AnalysisResult, error) {
	var resp vtapi.ObjectResponse
	raw, err := s.fetch(ctx, "/urls/"+URLID(rawURL), nil, &resp)
	if err != nil {
		if vtapi.IsNotFound(err) {
			return s.normalizer.NotFoundResult(rawURL, schemas.IndicatorURL), nil
		}
		return schemas.AnalysisResult{}, err
	}
	return s.normalizer.ParseURLResponse(resp, raw, rawURL), nil
}

// searchFilename resolves a filename to the first matching file hash and
// recurses into the hash scan path.
func (s *Service) searchFilename(ctx context.Context, filename string) (schemas.AnalysisResult, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("name:%q", filename))
	params.Set("limit", fmt.Sprint(searchLimit))

	var resp vtapi.ListResponse
	if _, err := s.fetch(ctx, "/search", params, &resp); err != nil {
		if vtapi.IsNotFound(err) {
			return s.normalizer.NotFoundResult(filename, schemas.IndicatorFilename), nil
		}
		return schemas.AnalysisResult{}, err
	}

	ids := resp.IDs()
	if len(ids) == 0 {
		return s.normalizer.NotFoundResult(filename, schemas.IndicatorFilename), nil
	}
	return s.scanHash(ctx, ids[0], false)
}

// -- relationship expansion --

// enrichHash concurrently fetches contacted IPs, contacted domains, and
// sandbox behaviour for a file. Each fetch is individually best-effort; a
// failure leaves its relationship list empty and never fails the scan.
func (s *Service) enrichHash(ctx context.Context, hash string, result *schemas.AnalysisResult) {
	var (
		contactedIPs     []string
		contactedDomains []string
		behaviours       *vtapi.BehaviourReport
		behaviourRaw     []byte
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		contactedIPs = s.fetchIDs(gctx, "/files/"+hash+"/contacted_ips")
		return nil
	})
	g.Go(func() error {
		contactedDomains = s.fetchIDs(gctx, "/files/"+hash+"/contacted_domains")
		return nil
	})
	g.Go(func() error {
		var report vtapi.BehaviourReport
		raw, err := s.fetch(gctx, "/files/"+hash+"/behaviours", limitParams(behaviourLimit), &report)
		if err != nil {
			s.log.Debug("Behaviour fetch failed", zap.String("hash", hash), zap.Error(err))
			return nil
		}
		behaviours = &report
		behaviourRaw = raw
		return nil
	})
	g.Wait()

	result.Relationships["contacted_ips"] = orEmpty(contactedIPs)
	result.Relationships["contacted_domains"] = orEmpty(contactedDomains)
	if behaviours != nil {
		result.BehavioralIndicators = ExtractBehavioralIndicators(*behaviours)
		result.SandboxData = behaviourRaw
	}
}

// enrichIP fetches the domains this address resolved to and the files seen
// communicating with it.
func (s *Service) enrichIP(ctx context.Context, ip string, result *schemas.AnalysisResult) {
	var resolutions, files []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resolutions = s.fetchList(gctx, "/ip_addresses/"+ip+"/resolutions", vtapi.ListResponse.Hostnames)
		return nil
	})
	g.Go(func() error {
		files = s.fetchIDs(gctx, "/ip_addresses/"+ip+"/communicating_files")
		return nil
	})
	g.Wait()

	result.Relationships["resolved_domains"] = orEmpty(resolutions)
	result.Relationships["communicating_files"] = orEmpty(files)
}

// enrichDomain fetches the addresses this domain resolved to and its known
// subdomains.
func (s *Service) enrichDomain(ctx context.Context, domain string, result *schemas.AnalysisResult) {
	var resolutions, subdomains []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resolutions = s.fetchList(gctx, "/domains/"+domain+"/resolutions", vtapi.ListResponse.IPAddresses)
		return nil
	})
	g.Go(func() error {
		subdomains = s.fetchIDs(gctx, "/domains/"+domain+"/subdomains")
		return nil
	})
	g.Wait()

	result.Relationships["resolved_ips"] = orEmpty(resolutions)
	result.Relationships["subdomains"] = orEmpty(subdomains)
}

// -- plumbing --

// fetch wraps the client call with quota bookkeeping: the request budget is
// re-checked before the call, and response headers are authoritative
// afterwards, falling back to a local decrement when they are absent.
func (s *Service) fetch(ctx context.Context, endpoint string, params url.Values, out any) ([]byte, error) {
	if !s.quota.CanProceed() {
		return nil, vtapi.ErrRateLimited
	}

	raw, headers, err := s.client.GetJSON(ctx, endpoint, params, out)

	if headers.Remaining != "" || headers.Reset != "" {
		s.quota.UpdateFromResponse(headers.Remaining, headers.Reset)
	} else if err == nil || errors.Is(err, vtapi.ErrNotFound) {
		// The request reached the upstream; count it locally.
		s.quota.Consume()
	}

	return raw, err
}

// fetchIDs is a best-effort relationship listing that extracts object IDs.
func (s *Service) fetchIDs(ctx context.Context, endpoint string) []string {
	return s.fetchList(ctx, endpoint, vtapi.ListResponse.IDs)
}

// fetchList is a best-effort relationship listing with a caller-chosen
// extractor. Failures log at debug and return nil.
func (s *Service) fetchList(ctx context.Context, endpoint string, extract func(vtapi.ListResponse) []string) []string {
	var resp vtapi.ListResponse
	if _, err := s.fetch(ctx, endpoint, limitParams(relationshipLimit), &resp); err != nil {
		s.log.Debug("Relationship fetch failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil
	}
	return extract(resp)
}

// persistHistory records the scan in the history store as a fire-and-forget
// side effect: the result has already been handed to the caller, and a
// persistence failure is logged, never surfaced.
func (s *Service) persistHistory(req schemas.ScanRequest, result schemas.AnalysisResult) {
	if s.store == nil {
		return
	}

	entry := schemas.ScanHistoryEntry{
		ID:        uuid.New().String(),
		Indicator: req.Indicator,
		Type:      req.Type,
		Result:    result,
		Timestamp: time.Now().UTC(),
	}

	s.persistWG.Add(1)
	go func() {
		defer s.persistWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SaveScan(ctx, entry); err != nil {
			s.log.Warn("Failed to save scan to history",
				zap.String("id", entry.ID),
				zap.String("indicator", entry.Indicator),
				zap.Error(err),
			)
		}
	}()
}

func limitParams(limit int) url.Values {
	params := url.Values{}
	params.Set("limit", fmt.Sprint(limit))
	return params
}
