package metadata

import (
	"strconv"
	"strings"
)

// Sidecar wire format: `tag1#tag2#...#tagN|rating` — tags joined by '#',
// a single '|', then the rating as a decimal integer in [0,5]. A missing
// '|' segment defaults the rating to 0; a missing file is equivalent to
// zero tags and rating 0.
const (
	tagSeparator    = "#"
	ratingSeparator = "|"

	// MaxTagLength is the maximum rune length of a single normalized tag.
	MaxTagLength = 50

	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5
)

// invalidTagRunes are stripped from tags before persisting: they are the
// characters the sidecar format reserves plus filesystem-hostile characters.
const invalidTagRunes = `\/:*?"<>|` + tagSeparator

// normalizeTags trims, strips invalid characters, truncates to MaxTagLength
// runes, drops empties, and de-duplicates case-insensitively keeping the
// first-seen casing. Order of first appearance is preserved.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = sanitizeTag(tag)
		if tag == "" {
			continue
		}

		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, tag)
	}

	return out
}

// sanitizeTag normalizes a single tag: strip reserved characters, trim
// whitespace, truncate to MaxTagLength runes.
func sanitizeTag(tag string) string {
	tag = strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidTagRunes, r) {
			return -1
		}

		return r
	}, tag)

	tag = strings.TrimSpace(tag)

	runes := []rune(tag)
	if len(runes) > MaxTagLength {
		tag = string(runes[:MaxTagLength])
	}

	return tag
}

// clampRating forces a rating into [0,MaxRating].
func clampRating(rating int) int {
	if rating < 0 {
		return 0
	}

	if rating > MaxRating {
		return MaxRating
	}

	return rating
}

// encodeSidecar serializes normalized tags and a clamped rating.
// Identical normalized input always yields byte-identical output.
func encodeSidecar(tags []string, rating int) string {
	return strings.Join(tags, tagSeparator) + ratingSeparator + strconv.Itoa(rating)
}

// decodeSidecar parses sidecar content. Malformed content degrades: an
// unparseable rating becomes 0, tags are re-normalized on the way in so a
// hand-edited sidecar cannot smuggle duplicates or reserved characters into
// the cache.
func decodeSidecar(content string) (tags []string, rating int) {
	content = strings.TrimRight(content, "\r\n")

	tagPart, ratingPart, found := strings.Cut(content, ratingSeparator)

	if tagPart != "" {
		tags = normalizeTags(strings.Split(tagPart, tagSeparator))
	}

	if found {
		if n, err := strconv.Atoi(strings.TrimSpace(ratingPart)); err == nil {
			rating = clampRating(n)
		}
	}

	return tags, rating
}
