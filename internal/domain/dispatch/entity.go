package dispatch

import (
	"regexp"
	"strings"
)

var (
	emailRe   = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	phoneRe   = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	twitterRe = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

	phoneCleanRe = regexp.MustCompile(`[^0-9+]`)
)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidPhone reports whether s is an E.164 phone number.
func ValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}

// ValidTwitterHandle reports whether s is a well-formed Twitter username
// (without the leading @).
func ValidTwitterHandle(s string) bool {
	return twitterRe.MatchString(s)
}

// CleanPhone strips everything except digits and the leading plus sign.
func CleanPhone(s string) string {
	return phoneCleanRe.ReplaceAllString(s, "")
}

// CleanHandle strips the optional @ prefix and surrounding whitespace from a
// social handle.
func CleanHandle(s string) string {
	return strings.Trim(s, "@ ")
}

// NormalizeEmailList lowercases, validates, and de-duplicates a recipient
// list, preserving first-occurrence order and capping at max entries.
// Invalid addresses are dropped.
func NormalizeEmailList(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, item := range in {
		addr := strings.ToLower(strings.TrimSpace(item))
		if !ValidEmail(addr) || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
		if len(out) == max {
			break
		}
	}
	return out
}

// NormalizePhoneList cleans, validates, and de-duplicates a phone number
// list, preserving first-occurrence order and capping at max entries.
func NormalizePhoneList(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, item := range in {
		num := CleanPhone(item)
		if !ValidPhone(num) || seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, num)
		if len(out) == max {
			break
		}
	}
	return out
}

// NormalizeHandleList strips @ prefixes, validates, and de-duplicates a list
// of Twitter handles (case-insensitive), preserving first-occurrence order
// and capping at max entries.
func NormalizeHandleList(in []string, max int) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, item := range in {
		h := CleanHandle(item)
		if !ValidTwitterHandle(h) || seen[strings.ToLower(h)] {
			continue
		}
		seen[strings.ToLower(h)] = true
		out = append(out, h)
		if len(out) == max {
			break
		}
	}
	return out
}
