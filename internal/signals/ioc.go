// Package signals isolates the text-parsing heuristics the workflows and
// router depend on (IOC extraction, risk-marker detection) behind a small
// set of pure functions, so the heuristics can change without touching
// workflow or router code.
package signals

import (
	"regexp"
	"strconv"
	"strings"
)

// IOCType classifies an extracted indicator.
type IOCType string

const (
	IOCTypeURL    IOCType = "url"
	IOCTypeHash   IOCType = "hash"
	IOCTypeIP     IOCType = "ip"
	IOCTypeDomain IOCType = "domain"
)

var (
	urlPattern    = regexp.MustCompile(`https?://[^\s]+`)
	hash64Pattern = regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)
	hash40Pattern = regexp.MustCompile(`\b[a-fA-F0-9]{40}\b`)
	hash32Pattern = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b`)
	ipPattern     = regexp.MustCompile(`\b(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})\b`)
	domainPattern = regexp.MustCompile(`\b[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.[a-zA-Z]{2,}\b`)

	allowedDomainTLDs = map[string]bool{
		"com": true, "net": true, "org": true, "io": true,
		"co": true, "info": true, "biz": true, "xyz": true,
	}

	defaultInternalDomains = map[string]bool{
		"example.com": true,
		"test.com":    true,
	}
)

// IOC is a single extracted indicator of compromise.
type IOC struct {
	Value string
	Type  IOCType
}

// IsPrivateIPv4 reports whether ip (dotted-quad) is a private, loopback, or
// link-local address excluded from IOC extraction.
func IsPrivateIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	octets := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
		octets[i] = n
	}
	switch {
	case octets[0] == 10:
		return true
	case octets[0] == 172 && octets[1] >= 16 && octets[1] <= 31:
		return true
	case octets[0] == 192 && octets[1] == 168:
		return true
	case octets[0] == 127:
		return true
	case octets[0] == 0:
		return true
	}
	return false
}

// isValidIPv4 checks that each octet parses to 0-255.
func isValidIPv4(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// ExtractHash returns the longest hash match in text, preferring a 64-char
// SHA-256 over a 40-char SHA-1 over a 32-char MD5 when more than one class
// could match; when exactly one class matches a substring, that class wins
// regardless of length ordering.
func ExtractHash(text string) (string, bool) {
	if m := hash64Pattern.FindString(text); m != "" {
		return m, true
	}
	if m := hash40Pattern.FindString(text); m != "" {
		return m, true
	}
	if m := hash32Pattern.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// ExtractPrimaryIOC finds the single highest-priority indicator in text:
// URL > hash > IP (public only) > domain (allow-listed TLD, not internal).
func ExtractPrimaryIOC(text string, internalDomains map[string]bool) (IOC, bool) {
	if m := urlPattern.FindString(text); m != "" {
		return IOC{Value: m, Type: IOCTypeURL}, true
	}
	if h, ok := ExtractHash(text); ok {
		return IOC{Value: h, Type: IOCTypeHash}, true
	}
	for _, m := range ipPattern.FindAllString(text, -1) {
		if isValidIPv4(m) && !IsPrivateIPv4(m) {
			return IOC{Value: m, Type: IOCTypeIP}, true
		}
	}
	for _, m := range domainPattern.FindAllString(text, -1) {
		if isInternalDomain(m, internalDomains) {
			continue
		}
		if hasAllowedTLD(m) {
			return IOC{Value: m, Type: IOCTypeDomain}, true
		}
	}
	return IOC{}, false
}

// ExtractAll returns every IOC found in text (used by the incident-response
// workflow, which needs all indicators rather than just the top priority
// match), deduplicated in first-seen order.
func ExtractAll(text string, internalDomains map[string]bool) []IOC {
	seen := make(map[string]bool)
	var out []IOC

	add := func(v string, t IOCType) {
		key := string(t) + ":" + v
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, IOC{Value: v, Type: t})
	}

	for _, m := range urlPattern.FindAllString(text, -1) {
		add(m, IOCTypeURL)
	}
	for _, m := range hash64Pattern.FindAllString(text, -1) {
		add(m, IOCTypeHash)
	}
	for _, m := range hash40Pattern.FindAllString(text, -1) {
		add(m, IOCTypeHash)
	}
	for _, m := range hash32Pattern.FindAllString(text, -1) {
		add(m, IOCTypeHash)
	}
	for _, m := range ipPattern.FindAllString(text, -1) {
		if isValidIPv4(m) && !IsPrivateIPv4(m) {
			add(m, IOCTypeIP)
		}
	}
	for _, m := range domainPattern.FindAllString(text, -1) {
		if isInternalDomain(m, internalDomains) {
			continue
		}
		if hasAllowedTLD(m) {
			add(m, IOCTypeDomain)
		}
	}
	return out
}

func hasAllowedTLD(domain string) bool {
	idx := strings.LastIndex(domain, ".")
	if idx < 0 {
		return false
	}
	return allowedDomainTLDs[strings.ToLower(domain[idx+1:])]
}

func isInternalDomain(domain string, extra map[string]bool) bool {
	d := strings.ToLower(domain)
	if defaultInternalDomains[d] {
		return true
	}
	return extra != nil && extra[d]
}

// InternalDomainSet expands a company domain into the TLD variants the
// workflow treats as internal (e.g. "acme.com" -> acme.com, acme.net, ...).
func InternalDomainSet(companyDomains []string) map[string]bool {
	out := make(map[string]bool)
	tlds := []string{"com", "net", "org", "io", "co"}
	for _, domain := range companyDomains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" {
			continue
		}
		idx := strings.LastIndex(domain, ".")
		base := domain
		if idx >= 0 {
			base = domain[:idx]
		}
		for _, tld := range tlds {
			out[base+"."+tld] = true
		}
	}
	return out
}
