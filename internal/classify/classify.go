// File: internal/classify/classify.go

// Package classify maps raw user input to an indicator type. Classification
// is a pure function of the string; it never fails and never touches the
// network.
package classify

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/xkilldash9x/iocscope/api/schemas"
)

var (
	md5Re    = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	sha1Re   = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	sha256Re = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

	// Dotted-quad IPv4 with each octet bounded at 255.
	ipv4Re = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

	// Conservative domain grammar: alphanumeric/hyphen labels of at most 63
	// characters, final label at least two alphabetic characters.
	domainRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}$`)
)

// fileExtensions lists final labels that mark an input as a filename even
// when it satisfies the domain grammar, so "readme.txt" does not route to the
// domain endpoint. Extensions that collide with real TLDs (com, sh, py, md,
// zip) are deliberately absent; those inputs stay domains.
var fileExtensions = map[string]bool{
	"txt": true, "exe": true, "dll": true, "pdf": true,
	"doc": true, "docx": true, "xls": true, "xlsx": true,
	"ppt": true, "pptx": true, "rtf": true,
	"rar": true, "tar": true, "iso": true, "msi": true,
	"apk": true, "jar": true, "bin": true, "dat": true,
	"log": true, "tmp": true, "ini": true, "cfg": true,
	"bak": true, "sys": true, "scr": true, "bat": true,
	"cmd": true, "vbs": true, "lnk": true,
}

// Classify determines the indicator type of the given input. Checks run in a
// fixed precedence order and the first match wins: the hash-length checks must
// precede the domain and IP checks, and URL detection must precede the domain
// grammar, whose host segment would otherwise match.
//
// Anything unrecognized defaults to hash. That default misclassifies short
// arbitrary strings, which then 404 against the file endpoint; it is kept for
// compatibility with the established lookup behavior.
func Classify(input string) schemas.IndicatorType {
	trimmed := strings.TrimSpace(input)

	switch {
	case md5Re.MatchString(trimmed),
		sha1Re.MatchString(trimmed),
		sha256Re.MatchString(trimmed):
		return schemas.IndicatorHash
	case ipv4Re.MatchString(trimmed):
		return schemas.IndicatorIP
	case isAbsoluteURL(trimmed):
		return schemas.IndicatorURL
	case domainRe.MatchString(trimmed) && !hasFileExtension(trimmed):
		return schemas.IndicatorDomain
	case strings.Contains(trimmed, ".") && len(trimmed) > 3:
		return schemas.IndicatorFilename
	default:
		return schemas.IndicatorHash
	}
}

// hasFileExtension reports whether the segment after the last dot is a known
// file extension.
func hasFileExtension(s string) bool {
	idx := strings.LastIndex(s, ".")
	if idx < 0 || idx == len(s)-1 {
		return false
	}
	return fileExtensions[strings.ToLower(s[idx+1:])]
}

// isAbsoluteURL reports whether s parses as an absolute URL with an http,
// https, or ftp scheme and a non-empty host.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "ftp":
		return true
	}
	return false
}
