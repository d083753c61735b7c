package schemas

import (
	"encoding/json"
	"time"
)

// -- Indicator Schemas --

// IndicatorType identifies the kind of indicator a raw string was classified as.
type IndicatorType string

const (
	IndicatorHash     IndicatorType = "hash"
	IndicatorIP       IndicatorType = "ip"
	IndicatorDomain   IndicatorType = "domain"
	IndicatorURL      IndicatorType = "url"
	IndicatorFilename IndicatorType = "filename"
)

// ThreatLevel is the coarse severity bucket derived from detection stats.
type ThreatLevel string

const (
	ThreatHigh    ThreatLevel = "high"
	ThreatMedium  ThreatLevel = "medium"
	ThreatLow     ThreatLevel = "low"
	ThreatClean   ThreatLevel = "clean"
	ThreatUnknown ThreatLevel = "unknown"
)

// ScanRequest describes a single reputation lookup.
type ScanRequest struct {
	Indicator            string        `json:"indicator"`
	Type                 IndicatorType `json:"type"`
	IncludeRelationships bool          `json:"include_relationships,omitempty"`
}

// DetectionStats holds the per-engine vote counts returned by the upstream
// multi-engine scanner, plus the values derived from them.
type DetectionStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
	Timeout    int `json:"timeout"`
	// Total is the sum of all vote counts above.
	Total int `json:"total"`
	// DetectionRatio renders as "{malicious+suspicious}/{total}".
	DetectionRatio string `json:"detection_ratio"`
	// ThreatScore is a 0-100 severity number; see intel.ThreatScore.
	ThreatScore float64 `json:"threat_score"`
}

// FileInfo carries file-specific attributes, populated only for hash scans.
type FileInfo struct {
	Hash            string   `json:"hash"`
	Filename        string   `json:"filename,omitempty"`
	Size            int64    `json:"size,omitempty"`
	TypeDescription string   `json:"type_description,omitempty"`
	FirstSeen       string   `json:"first_seen,omitempty"`
	LastAnalysis    string   `json:"last_analysis,omitempty"`
	Reputation      int      `json:"reputation"`
	Tags            []string `json:"tags"`
}

// NetworkInfo carries network attributes, populated for ip and domain scans.
type NetworkInfo struct {
	ASN        int      `json:"asn,omitempty"`
	ASOwner    string   `json:"as_owner,omitempty"`
	Country    string   `json:"country,omitempty"`
	Network    string   `json:"network,omitempty"`
	Registrar  string   `json:"registrar,omitempty"`
	Categories []string `json:"categories"`
}

// AnalysisResult is the unified record produced for one completed scan,
// regardless of indicator type. It is constructed once by the normalizer and
// immutable afterwards; cached and persisted verbatim.
type AnalysisResult struct {
	IOC                  string              `json:"ioc"`
	IOCType              IndicatorType       `json:"ioc_type"`
	Found                bool                `json:"found"`
	DetectionStats       DetectionStats      `json:"detection_stats"`
	ThreatLevel          ThreatLevel         `json:"threat_level"`
	ThreatScore          float64             `json:"threat_score"`
	FileInfo             *FileInfo           `json:"file_info,omitempty"`
	NetworkInfo          *NetworkInfo        `json:"network_info,omitempty"`
	BehavioralIndicators []string            `json:"behavioral_indicators"`
	Relationships        map[string][]string `json:"relationships"`
	// RawData keeps the upstream payload for diagnostic display.
	RawData     json.RawMessage `json:"raw_data,omitempty"`
	SandboxData json.RawMessage `json:"sandbox_data,omitempty"`
	Permalink   string          `json:"permalink"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ScanHistoryEntry wraps an AnalysisResult with the original query parameters
// for durable storage. Only the Favorite flag is mutable after creation.
type ScanHistoryEntry struct {
	ID        string         `json:"id"`
	Indicator string         `json:"indicator"`
	Type      IndicatorType  `json:"type"`
	Result    AnalysisResult `json:"result"`
	Timestamp time.Time      `json:"timestamp"`
	Favorite  bool           `json:"favorite"`
}

// RateLimitInfo is a point-in-time snapshot of the client-side quota tracker.
type RateLimitInfo struct {
	Remaining         int       `json:"remaining"`
	ResetAt           time.Time `json:"reset_at"`
	MinutesUntilReset float64   `json:"minutes_until_reset"`
}
