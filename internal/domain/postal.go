package domain

import (
	"regexp"
	"strings"
)

var postalRe = regexp.MustCompile(`\b([A-Z]\d[A-Z])\s?(\d[A-Z]\d)\b`)

var nonAlnumRe = regexp.MustCompile(`[^A-Z0-9]`)

// NormalizePostal collapses a Canadian postal code to its bare 6-character
// form ("j4g 1a1" -> "J4G1A1"). Returns "" for unusable input.
func NormalizePostal(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = nonAlnumRe.ReplaceAllString(s, "")
	if len(s) > 6 {
		s = s[:6]
	}
	return s
}

// ExtractPostal finds the first Canadian postal code embedded in free text.
func ExtractPostal(text string) string {
	m := postalRe.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return ""
	}
	return m[1] + m[2]
}

// FSA returns the Forward Sortation Area (first three characters) of a
// normalized postal code, or "" when the code is too short.
func FSA(postal string) string {
	p := NormalizePostal(postal)
	if len(p) < 3 {
		return ""
	}
	return p[:3]
}

// NormalizeCAPostal rewrites a bare 6-character Canadian postal code into the
// form Google geocoding resolves unambiguously ("J4G1A1" -> "J4G 1A1, Canada").
// Anything that does not look like a postal code is returned unchanged.
func NormalizeCAPostal(text string) string {
	t := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(text), " ", ""))
	if len(t) == 6 && postalRe.MatchString(t[:3]+" "+t[3:]) {
		return t[:3] + " " + t[3:] + ", Canada"
	}
	return text
}

// Zone is a coarse geographic bucket derived from the FSA. The zones model
// the greater Montreal service territory: crossing the river costs real
// drive time that straight FSA distance does not capture.
type Zone string

const (
	ZoneMTLLaval Zone = "MTL_LAVAL"
	ZoneRiveSud  Zone = "RIVE_SUD"
	ZoneRiveNord Zone = "RIVE_NORD"
	ZoneOther    Zone = "OTHER"
)

// ZoneFromPostal maps a postal code to its service zone.
func ZoneFromPostal(postal string) Zone {
	fsa := FSA(postal)
	if fsa == "" {
		return ZoneOther
	}
	switch {
	case strings.HasPrefix(fsa, "H"):
		return ZoneMTLLaval
	case strings.HasPrefix(fsa, "J3"), strings.HasPrefix(fsa, "J4"):
		return ZoneRiveSud
	case strings.HasPrefix(fsa, "J5"), strings.HasPrefix(fsa, "J6"), strings.HasPrefix(fsa, "J7"):
		return ZoneRiveNord
	}
	return ZoneOther
}

// ZonePenalties holds the extra minutes charged when a candidate job sits in
// a different zone than the technician's current location.
type ZonePenalties struct {
	NorthSouth int
	MTLOther   int
	Other      int
}

// Penalty returns the inter-zone travel penalty in minutes.
func (p ZonePenalties) Penalty(a, b Zone) int {
	if a == b {
		return 0
	}
	if (a == ZoneRiveNord && b == ZoneRiveSud) || (a == ZoneRiveSud && b == ZoneRiveNord) {
		return p.NorthSouth
	}
	if a == ZoneMTLLaval || b == ZoneMTLLaval {
		return p.MTLOther
	}
	return p.Other
}
