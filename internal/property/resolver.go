// Package property derives a stable property identity from free-text listing
// names such as "Airbnb - 2B N1 A - 29 Shoreditch Heights".
//
// There is no upstream property id, so grouping relies on these heuristics.
// They misparse unusual names (no street number, extra separators); that is
// accepted, and changing them would change how reviews are grouped.
package property

import (
	"regexp"
	"strings"

	"flex_reviews/internal/domain"
)

const separator = " - "

var (
	channelPrefix = regexp.MustCompile(`(?i)^(Airbnb|Booking\.com|VRBO|Expedia)\s*-\s*`)
	leadingDigits = regexp.MustCompile(`^\d+`)
	trailingAddr  = regexp.MustCompile(`\d+\s+[A-Za-z\s]+$`)
	addressLike   = regexp.MustCompile(`^\d+\s+[A-Za-z]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9-]`)
)

func stripChannel(listingName string) string {
	return strings.TrimSpace(channelPrefix.ReplaceAllString(listingName, ""))
}

// ParseAddress returns the human-readable address, e.g. "29 Shoreditch Heights".
// Names without a recognizable address come back whole, minus any channel prefix.
func ParseAddress(listingName string) string {
	cleaned := stripChannel(listingName)

	if parts := strings.Split(cleaned, separator); len(parts) > 1 {
		last := strings.TrimSpace(parts[len(parts)-1])
		if leadingDigits.MatchString(last) {
			return last
		}
	}

	if m := trailingAddr.FindString(cleaned); m != "" {
		return strings.TrimSpace(m)
	}
	return cleaned
}

// ParseUnit returns the unit label ("2B N1 A") or "" when there is none.
func ParseUnit(listingName string) string {
	parts := strings.Split(stripChannel(listingName), separator)
	if len(parts) < 2 {
		return ""
	}
	unit := strings.TrimSpace(parts[0])
	if unit == "" || addressLike.MatchString(unit) {
		return ""
	}
	return unit
}

// ToSlug turns an address into a URL-safe id: "29 Shoreditch Heights" -> "29-shoreditch-heights".
func ToSlug(address string) string {
	s := strings.ToLower(address)
	s = whitespaceRun.ReplaceAllString(s, "-")
	return nonSlugChars.ReplaceAllString(s, "")
}

// Slug is ToSlug(ParseAddress(listingName)).
func Slug(listingName string) string { return ToSlug(ParseAddress(listingName)) }

func Resolve(listingName string) domain.PropertyIdentity {
	addr := ParseAddress(listingName)
	return domain.PropertyIdentity{
		Address: addr,
		Slug:    ToSlug(addr),
		Unit:    ParseUnit(listingName),
	}
}

// FindBySlug returns the identity of the first review whose listing maps to slug.
func FindBySlug(reviews []domain.CanonicalReview, slug string) (domain.PropertyIdentity, bool) {
	for _, r := range reviews {
		if Slug(r.ListingName) == slug {
			return Resolve(r.ListingName), true
		}
	}
	return domain.PropertyIdentity{}, false
}
