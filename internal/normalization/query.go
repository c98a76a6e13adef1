package normalization

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	cacheKeyPrefix = "query:v1:"
	emptyDigest    = "empty"
)

// stopwords are dropped from normalized queries so that filler words do not
// fragment the cache. "minecraft videos for kids" and "videos minecraft kids"
// should land on the same digest.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "for": {}, "of": {},
	"in": {}, "on": {}, "to": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {},
	"need": {}, "dare": {}, "ought": {}, "used": {}, "with": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "through": {}, "during": {},
	"before": {}, "after": {}, "above": {}, "below": {}, "between": {}, "under": {},
}

// NormalizeQuery canonicalizes a raw search query so that trivially different
// phrasings of the same intent produce identical output. The pipeline is:
// lowercase, strip everything except letters, digits, spaces and hyphens,
// collapse whitespace and hyphen runs, drop stopwords, then sort the
// remaining tokens lexicographically.
func NormalizeQuery(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteRune(' ')
		default:
			// dropped: punctuation, symbols, non-latin characters
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		kept = append(kept, tok)
	}
	sort.Strings(kept)
	return strings.Join(kept, " ")
}

// QueryDigest returns the first 16 hex characters of the SHA-256 of the
// normalized query. Two queries share a digest exactly when they normalize
// to the same string.
func QueryDigest(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeQuery(raw)))
	return hex.EncodeToString(sum[:])[:16]
}

// DigestOfNormalized hashes an already-normalized query.
func DigestOfNormalized(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// CacheKey builds the versioned cache key for a raw query. Queries that
// normalize to nothing at all share a single "empty" slot.
func CacheKey(raw string) string {
	normalized := NormalizeQuery(raw)
	if normalized == "" {
		return cacheKeyPrefix + emptyDigest
	}
	return cacheKeyPrefix + DigestOfNormalized(normalized)
}
