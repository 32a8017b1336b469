package gateway

import "strings"

// Format is the closed set of export serializations the upstream understands.
type Format int

const (
	// FormatPassthrough leaves the caller's own Accept header in place.
	FormatPassthrough Format = iota
	// FormatCSV requests text/csv.
	FormatCSV
	// FormatJSON requests application/json.
	FormatJSON
	// FormatText requests text/plain.
	FormatText
)

// ParseFormat maps the export format query parameter onto the enumeration.
// Unknown or empty values fall back to FormatPassthrough.
func ParseFormat(raw string) Format {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "csv":
		return FormatCSV
	case "json":
		return FormatJSON
	case "txt", "text":
		return FormatText
	default:
		return FormatPassthrough
	}
}

// Accept returns the Accept header value for the format. ok is false for
// FormatPassthrough, which defers to the caller's own header.
func (f Format) Accept() (accept string, ok bool) {
	switch f {
	case FormatCSV:
		return "text/csv", true
	case FormatJSON:
		return "application/json", true
	case FormatText:
		return "text/plain", true
	case FormatPassthrough:
		return "", false
	default:
		return "", false
	}
}

// String returns the query-parameter spelling, or "passthrough" for the
// default branch.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatText:
		return "txt"
	case FormatPassthrough:
		return "passthrough"
	default:
		return "passthrough"
	}
}

// query returns the format parameter forwarded upstream; empty for
// passthrough so the upstream applies its own default.
func (f Format) query() string {
	if f == FormatPassthrough {
		return ""
	}
	return f.String()
}
