// File: internal/vtapi/types.go
package vtapi

import "encoding/json"

// The upstream returns one of a handful of envelope shapes depending on the
// endpoint. Every field is optional; absent fields decode to their zero value
// so the normalizer never has to guard against missing keys.

// AnalysisStats is the per-engine vote breakdown embedded in object
// attributes as last_analysis_stats.
type AnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
	Timeout    int `json:"timeout"`
}

// Sum returns the total number of engine votes.
func (s AnalysisStats) Sum() int {
	return s.Malicious + s.Suspicious + s.Harmless + s.Undetected + s.Timeout
}

// ObjectAttributes is the union of the attribute fields used across the file,
// IP address, domain, and URL object types.
type ObjectAttributes struct {
	LastAnalysisStats AnalysisStats `json:"last_analysis_stats"`

	// File attributes.
	MeaningfulName      string   `json:"meaningful_name"`
	Names               []string `json:"names"`
	Size                int64    `json:"size"`
	TypeDescription     string   `json:"type_description"`
	FirstSubmissionDate int64    `json:"first_submission_date"`
	LastAnalysisDate    int64    `json:"last_analysis_date"`
	Reputation          int      `json:"reputation"`
	Tags                []string `json:"tags"`

	// IP address attributes.
	ASN     int    `json:"asn"`
	ASOwner string `json:"as_owner"`
	Country string `json:"country"`
	Network string `json:"network"`

	// Domain attributes.
	Registrar  string            `json:"registrar"`
	Categories map[string]string `json:"categories"`
}

// Object is the single-object envelope returned by /files/{hash},
// /ip_addresses/{ip}, /domains/{domain}, and /urls/{id}.
type Object struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Attributes ObjectAttributes `json:"attributes"`
}

// ObjectResponse wraps a single object under "data".
type ObjectResponse struct {
	Data Object `json:"data"`
}

// ListItemAttributes carries the attribute fields used from collection items.
// Resolution objects expose host_name / ip_address.
type ListItemAttributes struct {
	HostName  string `json:"host_name"`
	IPAddress string `json:"ip_address"`
}

// ListResponse is the collection envelope returned by relationship and search
// endpoints.
type ListResponse struct {
	Data []struct {
		ID         string             `json:"id"`
		Type       string             `json:"type"`
		Attributes ListItemAttributes `json:"attributes"`
	} `json:"data"`
}

// IDs extracts the non-empty object IDs from a collection.
func (r ListResponse) IDs() []string {
	out := make([]string, 0, len(r.Data))
	for _, item := range r.Data {
		if item.ID != "" {
			out = append(out, item.ID)
		}
	}
	return out
}

// Hostnames extracts the non-empty host_name attributes from a collection.
func (r ListResponse) Hostnames() []string {
	out := make([]string, 0, len(r.Data))
	for _, item := range r.Data {
		if item.Attributes.HostName != "" {
			out = append(out, item.Attributes.HostName)
		}
	}
	return out
}

// IPAddresses extracts the non-empty ip_address attributes from a collection.
func (r ListResponse) IPAddresses() []string {
	out := make([]string, 0, len(r.Data))
	for _, item := range r.Data {
		if item.Attributes.IPAddress != "" {
			out = append(out, item.Attributes.IPAddress)
		}
	}
	return out
}

// BehaviourSummary is the sandbox activity summary inside a behaviour report.
// Entry shapes vary across sandboxes, so list members stay raw; only the
// counts and the technique identifiers are consumed.
type BehaviourSummary struct {
	FilesWritten          []json.RawMessage `json:"files_written"`
	FilesDropped          []json.RawMessage `json:"files_dropped"`
	RegistryKeysSet       []json.RawMessage `json:"registry_keys_set"`
	ProcessesCreated      []json.RawMessage `json:"processes_created"`
	DNSLookups            []json.RawMessage `json:"dns_lookups"`
	MitreAttackTechniques []string          `json:"mitre_attack_techniques"`
}

// BehaviourAttributes wraps the summary of one sandbox run.
type BehaviourAttributes struct {
	Summary BehaviourSummary `json:"summary"`
}

// Behaviour is a single sandbox report within a behaviour collection.
type Behaviour struct {
	Attributes BehaviourAttributes `json:"attributes"`
}

// BehaviourReport is the envelope returned by /files/{hash}/behaviours.
type BehaviourReport struct {
	Data []Behaviour `json:"data"`
}
