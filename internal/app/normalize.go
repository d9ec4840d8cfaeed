package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

/********** channel registry (ordered, first match wins) **********/

var channelMarkers = []struct{ needle, name string }{
	{"airbnb", "Airbnb"},
	{"booking", "Booking.com"},
	{"vrbo", "VRBO"},
	{"expedia", "Expedia"},
}

// ExtractChannel derives the booking channel from a listing name, "" if none matches.
func ExtractChannel(listingName string) string {
	low := strings.ToLower(listingName)
	for _, c := range channelMarkers {
		if strings.Contains(low, c.needle) {
			return c.name
		}
	}
	return ""
}

// Normalize maps a validated upstream record to the canonical review. Pure and total.
func Normalize(r domain.RawReview) domain.CanonicalReview {
	cats := make([]domain.CategoryRating, len(r.Categories))
	copy(cats, r.Categories)

	var rating *float64
	if r.Rating != nil {
		v := *r.Rating
		rating = &v
	}

	return domain.CanonicalReview{
		ID:               r.ID,
		Type:             r.Type,
		Status:           r.Status,
		Rating:           rating,
		PublicReview:     r.PublicReview,
		ReviewCategories: cats,
		SubmittedAt:      r.SubmittedAt,
		GuestName:        r.GuestName,
		ListingName:      r.ListingName,
		Channel:          ExtractChannel(r.ListingName),
	}
}

func NormalizeAll(in []domain.RawReview) []domain.CanonicalReview {
	out := make([]domain.CanonicalReview, 0, len(in))
	for _, r := range in {
		out = append(out, Normalize(r))
	}
	return out
}

/********** ingestion boundary: untyped JSON -> RawReview **********/

// timestamp layouts accepted for submittedAt; zone-less values are UTC.
var submittedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformed, fmt.Sprintf(format, args...))
}

// DecodeEnvelope parses an upstream-shaped payload and validates every record.
func DecodeEnvelope(b []byte) (string, []domain.RawReview, error) {
	var env domain.ReviewsEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return "", nil, malformed("envelope: %v", err)
	}
	rs, err := DecodeRecords(env.Result)
	return env.Status, rs, err
}

// DecodeRecords validates a whole batch; one bad record rejects the batch.
func DecodeRecords(in []map[string]any) ([]domain.RawReview, error) {
	out := make([]domain.RawReview, 0, len(in))
	for i, m := range in {
		r, err := DecodeRawReview(m)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DecodeRawReview is the single validation step at the ingestion boundary.
func DecodeRawReview(m map[string]any) (domain.RawReview, error) {
	var rv domain.RawReview
	if m == nil {
		return rv, malformed("null record")
	}

	id, ok := asInt64(m["id"])
	if !ok {
		return rv, malformed("id: want integer, got %T", m["id"])
	}
	rv.ID = id

	switch t := domain.ReviewType(lookupStr(m, "type")); t {
	case domain.GuestToHost, domain.HostToGuest:
		rv.Type = t
	default:
		return rv, malformed("review %d: unknown type %q", id, t)
	}

	switch s := domain.ReviewStatus(lookupStr(m, "status")); s {
	case domain.StatusPublished, domain.StatusPending, domain.StatusRejected:
		rv.Status = s
	default:
		return rv, malformed("review %d: unknown status %q", id, s)
	}

	switch v := m["rating"].(type) {
	case nil:
	case float64:
		f := v
		rv.Rating = &f
	default:
		return rv, malformed("review %d: rating: want number or null, got %T", id, v)
	}

	var err error
	if rv.PublicReview, err = optionalString(m, "publicReview"); err != nil {
		return rv, malformed("review %d: %v", id, err)
	}
	if rv.GuestName, err = optionalString(m, "guestName"); err != nil {
		return rv, malformed("review %d: %v", id, err)
	}

	ln, ok := m["listingName"].(string)
	if !ok {
		return rv, malformed("review %d: listingName: want string, got %T", id, m["listingName"])
	}
	rv.ListingName = ln

	ts, ok := m["submittedAt"].(string)
	if !ok {
		return rv, malformed("review %d: submittedAt: want string, got %T", id, m["submittedAt"])
	}
	if rv.SubmittedAt, ok = parseSubmitted(ts); !ok {
		return rv, malformed("review %d: submittedAt: unparseable %q", id, ts)
	}

	if rv.Categories, err = decodeCategories(m["reviewCategory"]); err != nil {
		return rv, malformed("review %d: %v", id, err)
	}
	return rv, nil
}

func decodeCategories(v any) ([]domain.CategoryRating, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("reviewCategory: want array, got %T", v)
	}
	out := make([]domain.CategoryRating, 0, len(raw))
	for i, it := range raw {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("reviewCategory[%d]: want object, got %T", i, it)
		}
		name, ok := obj["category"].(string)
		if !ok || name == "" {
			return nil, fmt.Errorf("reviewCategory[%d]: missing category", i)
		}
		n, ok := asInt64(obj["rating"])
		if !ok || n < 0 || n > 10 {
			return nil, fmt.Errorf("reviewCategory[%d]: rating must be an integer 0..10", i)
		}
		out = append(out, domain.CategoryRating{Category: name, Rating: int(n)})
	}
	return out, nil
}

func parseSubmitted(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range submittedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if s, ok := lookupAny(m, path).(string); ok {
		return s
	}
	return ""
}

// optionalString accepts a string, null or a missing key.
func optionalString(m map[string]any, key string) (string, error) {
	switch v := lookupAny(m, key).(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
}

// asInt64 accepts whole JSON numbers that fit in an int64.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n >= 1<<63 || n < -(1<<63) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		x, err := n.Int64()
		return x, err == nil
	}
	return 0, false
}
