package notify

import (
	"regexp"
	"strings"
)

// emailShapeRe accepts local@domain.tld. It is intentionally loose: anything
// without whitespace around a single "@" and a dotted domain passes.
var emailShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@.]+(\.[^\s@.]+)+$`)

func IsValidEmail(s string) bool {
	return emailShapeRe.MatchString(strings.TrimSpace(s))
}

// PartitionEmails trims every candidate and splits the list into valid and
// invalid addresses, keeping the input order within each list.
func PartitionEmails(candidates []string) (valid, invalid []string) {
	valid = []string{}
	invalid = []string{}
	for _, raw := range candidates {
		addr := strings.TrimSpace(raw)
		if IsValidEmail(addr) {
			valid = append(valid, addr)
		} else {
			invalid = append(invalid, addr)
		}
	}
	return valid, invalid
}
