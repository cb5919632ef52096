// Package validate implements §4.7's field validation and sanitization:
// every rule is non-fatal, dropping the offending field and appending to
// a record's validation_errors rather than aborting normalization.
package validate

import (
	"net"
	"regexp"
	"strings"
)

var hostnameRegex = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?(\.[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)

var macRegex = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

var hostnameSanitizeRegex = regexp.MustCompile(`[^A-Za-z0-9.-]`)
var dashRunRegex = regexp.MustCompile(`-{2,}`)

// placeholderSerials is the closed set of vendor placeholder strings
// treated as an absent serial number.
var placeholderSerials = map[string]bool{
	"UNKNOWN":                   true,
	"N/A":                       true,
	"NOT AVAILABLE":             true,
	"TO BE FILLED BY O.E.M.":    true,
	"DEFAULT STRING":            true,
	"0000000":                   true,
}

// Result accumulates non-fatal validation errors alongside the sanitized
// value, mirroring the pattern the caller threads into
// AssetRecord.ValidationErrors.
type Result struct {
	Errors []string
}

func (r *Result) fail(field, reason string) {
	r.Errors = append(r.Errors, field+": "+reason)
}

// IPv4 validates a dotted-quad address, returning "" if invalid.
func IPv4(r *Result, s string) string {
	if s == "" {
		return ""
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		r.fail("ip_address", "not a valid IPv4 address")
		return ""
	}
	return ip.To4().String()
}

// Hostname validates s against the hostname grammar; non-matching input
// is regex-sanitized and re-checked against the length rule, per §4.7.
func Hostname(r *Result, s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 253 && hostnameRegex.MatchString(s) {
		return s
	}

	sanitized := hostnameSanitizeRegex.ReplaceAllString(s, "-")
	sanitized = dashRunRegex.ReplaceAllString(sanitized, "-")
	sanitized = strings.Trim(sanitized, "-")

	if sanitized != "" && len(sanitized) <= 63 {
		return sanitized
	}
	r.fail("hostname", "unsanitizable or exceeds length limit")
	return ""
}

// MAC validates an already-normalized (uppercase colon-separated) MAC.
func MAC(r *Result, s string) string {
	if s == "" {
		return ""
	}
	if macRegex.MatchString(s) {
		return s
	}
	r.fail("mac_address", "does not match MAC grammar")
	return ""
}

// Serial validates a serial number against length and placeholder rules.
func Serial(r *Result, s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) < 3 {
		r.fail("serial_number", "too short")
		return ""
	}
	if placeholderSerials[strings.ToUpper(s)] {
		r.fail("serial_number", "placeholder value")
		return ""
	}
	return s
}

// NonNegativeInt validates a count (cores, GB, etc). Negative values are
// dropped to 0 with an error; this function does not distinguish "absent"
// from "zero" for the caller, matching §4.7's "negative ... -> absent".
func NonNegativeInt(r *Result, field string, v int) int {
	if v < 0 {
		r.fail(field, "negative value")
		return 0
	}
	return v
}
