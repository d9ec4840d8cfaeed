// Package static bundles the fallback review dataset served when the
// Hostaway API is unreachable or returns no reviews.
package static

import _ "embed"

//go:embed reviews.json
var reviews []byte

// Reviews returns the bundled dataset in the upstream wire shape.
func Reviews() []byte {
	out := make([]byte, len(reviews))
	copy(out, reviews)
	return out
}
