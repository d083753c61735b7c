// File: internal/intel/normalize.go
package intel

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/xkilldash9x/iocscope/api/schemas"
	"github.com/xkilldash9x/iocscope/internal/vtapi"
)

// Normalizer converts the upstream response shapes into the unified
// AnalysisResult model. All parse methods are total and side-effect free:
// missing fields default to zero values and never fail the parse.
type Normalizer struct {
	guiBaseURL string
	now        func() time.Time
}

// NewNormalizer builds a normalizer that links permalinks under guiBaseURL.
func NewNormalizer(guiBaseURL string) *Normalizer {
	return &Normalizer{guiBaseURL: guiBaseURL, now: time.Now}
}

// BuildStats derives the full DetectionStats record from raw engine votes.
func BuildStats(stats vtapi.AnalysisStats) schemas.DetectionStats {
	total := stats.Sum()
	return schemas.DetectionStats{
		Malicious:      stats.Malicious,
		Suspicious:     stats.Suspicious,
		Harmless:       stats.Harmless,
		Undetected:     stats.Undetected,
		Timeout:        stats.Timeout,
		Total:          total,
		DetectionRatio: fmt.Sprintf("%d/%d", stats.Malicious+stats.Suspicious, total),
		ThreatScore:    ThreatScore(stats),
	}
}

// ThreatScore computes the 0-100 severity number: malicious votes weigh 1.0,
// suspicious 0.5, scaled by the engine total and capped at 100.
func ThreatScore(stats vtapi.AnalysisStats) float64 {
	total := stats.Sum()
	if total == 0 {
		return 0
	}
	score := (float64(stats.Malicious) + 0.5*float64(stats.Suspicious)) / float64(total) * 100
	if score > 100 {
		return 100
	}
	return score
}

// ThreatLevel buckets detection stats into a coarse severity. The absolute
// count thresholds (5, 2) catch indicators where a large engine total dilutes
// the ratio below the percentage thresholds despite a meaningful number of
// detections.
func ThreatLevel(stats schemas.DetectionStats) schemas.ThreatLevel {
	if stats.Total == 0 {
		return schemas.ThreatUnknown
	}
	ratio := float64(stats.Malicious) / float64(stats.Total)
	switch {
	case ratio >= 0.10 || stats.Malicious >= 5:
		return schemas.ThreatHigh
	case ratio >= 0.05 || stats.Malicious >= 2:
		return schemas.ThreatMedium
	case stats.Suspicious > 0 || stats.Malicious > 0:
		return schemas.ThreatLow
	default:
		return schemas.ThreatClean
	}
}

// URLID returns the upstream identifier for a URL indicator: the URL-safe
// base64 encoding of the raw URL with trailing padding stripped.
func URLID(rawURL string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL))
}

// ParseFileResponse normalizes a /files/{hash} object.
func (n *Normalizer) ParseFileResponse(resp vtapi.ObjectResponse, raw []byte, hash string) schemas.AnalysisResult {
	attrs := resp.Data.Attributes
	stats := BuildStats(attrs.LastAnalysisStats)

	filename := attrs.MeaningfulName
	if filename == "" && len(attrs.Names) > 0 {
		filename = attrs.Names[0]
	}

	fileInfo := &schemas.FileInfo{
		Hash:            hash,
		Filename:        filename,
		Size:            attrs.Size,
		TypeDescription: attrs.TypeDescription,
		FirstSeen:       epochToISO(attrs.FirstSubmissionDate),
		LastAnalysis:    epochToISO(attrs.LastAnalysisDate),
		Reputation:      attrs.Reputation,
		Tags:            orEmpty(attrs.Tags),
	}

	result := n.newResult(hash, schemas.IndicatorHash, stats, raw)
	result.FileInfo = fileInfo
	result.Permalink = n.guiBaseURL + "/file/" + hash
	return result
}

// ParseIPResponse normalizes an /ip_addresses/{ip} object.
func (n *Normalizer) ParseIPResponse(resp vtapi.ObjectResponse, raw []byte, ip string) schemas.AnalysisResult {
	attrs := resp.Data.Attributes
	stats := BuildStats(attrs.LastAnalysisStats)

	result := n.newResult(ip, schemas.IndicatorIP, stats, raw)
	result.NetworkInfo = &schemas.NetworkInfo{
		ASN:        attrs.ASN,
		ASOwner:    attrs.ASOwner,
		Country:    attrs.Country,
		Network:    attrs.Network,
		Categories: categoryValues(attrs.Categories),
	}
	result.Permalink = n.guiBaseURL + "/ip-address/" + ip
	return result
}

// ParseDomainResponse normalizes a /domains/{domain} object.
func (n *Normalizer) ParseDomainResponse(resp vtapi.ObjectResponse, raw []byte, domain string) schemas.AnalysisResult {
	attrs := resp.Data.Attributes
	stats := BuildStats(attrs.LastAnalysisStats)

	result := n.newResult(domain, schemas.IndicatorDomain, stats, raw)
	result.NetworkInfo = &schemas.NetworkInfo{
		Registrar:  attrs.Registrar,
		Categories: categoryValues(attrs.Categories),
	}
	result.Permalink = n.guiBaseURL + "/domain/" + domain
	return result
}

// ParseURLResponse normalizes a /urls/{id} object. URL scans carry no
// type-specific info block, only stats and a permalink.
func (n *Normalizer) ParseURLResponse(resp vtapi.ObjectResponse, raw []byte, rawURL string) schemas.AnalysisResult {
	stats := BuildStats(resp.Data.Attributes.LastAnalysisStats)

	result := n.newResult(rawURL, schemas.IndicatorURL, stats, raw)
	result.Permalink = n.guiBaseURL + "/url/" + URLID(rawURL)
	return result
}

// NotFoundResult builds the found:false record for an indicator the upstream
// has no data for. The permalink is still computed so a caller can deep-link
// to the upstream page.
func (n *Normalizer) NotFoundResult(indicator string, indType schemas.IndicatorType) schemas.AnalysisResult {
	result := n.newResult(indicator, indType, schemas.DetectionStats{DetectionRatio: "0/0"}, nil)
	result.Found = false
	result.ThreatLevel = schemas.ThreatUnknown

	if indType == schemas.IndicatorURL {
		result.Permalink = n.guiBaseURL + "/url/" + URLID(indicator)
	} else {
		result.Permalink = fmt.Sprintf("%s/%s/%s", n.guiBaseURL, indType, indicator)
	}
	return result
}

// ExtractBehavioralIndicators flattens sandbox behaviour reports into at most
// ten human-readable strings: activity counts plus up to three MITRE
// technique identifiers per report, from the first two reports.
func ExtractBehavioralIndicators(report vtapi.BehaviourReport) []string {
	const (
		maxIndicators = 10
		maxReports    = 2
		maxTechniques = 3
	)

	indicators := []string{}
	for i, behaviour := range report.Data {
		if i >= maxReports {
			break
		}
		summary := behaviour.Attributes.Summary

		if n := len(summary.FilesWritten); n > 0 {
			indicators = append(indicators, fmt.Sprintf("Files written: %d", n))
		}
		if n := len(summary.FilesDropped); n > 0 {
			indicators = append(indicators, fmt.Sprintf("Files dropped: %d", n))
		}
		if n := len(summary.RegistryKeysSet); n > 0 {
			indicators = append(indicators, fmt.Sprintf("Registry modifications: %d", n))
		}
		if n := len(summary.ProcessesCreated); n > 0 {
			indicators = append(indicators, fmt.Sprintf("Processes created: %d", n))
		}
		if n := len(summary.DNSLookups); n > 0 {
			indicators = append(indicators, fmt.Sprintf("DNS lookups: %d", n))
		}
		for j, technique := range summary.MitreAttackTechniques {
			if j >= maxTechniques {
				break
			}
			indicators = append(indicators, "MITRE: "+technique)
		}
	}

	if len(indicators) > maxIndicators {
		indicators = indicators[:maxIndicators]
	}
	return indicators
}

// newResult assembles the common fields shared by every parse path.
func (n *Normalizer) newResult(indicator string, indType schemas.IndicatorType, stats schemas.DetectionStats, raw []byte) schemas.AnalysisResult {
	return schemas.AnalysisResult{
		IOC:                  indicator,
		IOCType:              indType,
		Found:                true,
		DetectionStats:       stats,
		ThreatLevel:          ThreatLevel(stats),
		ThreatScore:          stats.ThreatScore,
		BehavioralIndicators: []string{},
		Relationships:        map[string][]string{},
		RawData:              raw,
		Timestamp:            n.now().UTC(),
	}
}

// epochToISO renders a unix timestamp as RFC3339, or empty when absent.
func epochToISO(sec int64) string {
	if sec == 0 {
		return ""
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

// categoryValues flattens the vendor-keyed category map into a value list.
func categoryValues(categories map[string]string) []string {
	out := make([]string, 0, len(categories))
	for _, v := range categories {
		out = append(out, v)
	}
	return out
}

// orEmpty substitutes an empty slice for nil so downstream JSON renders [].
func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
