// Package identity turns noisy raw usernames into stable player identities.
// Normalization produces comparison keys; resolution clusters records that
// refer to the same real player, within a batch and against an existing
// leaderboard.
package identity

import (
	"errors"
	"sort"
	"strings"
)

// ErrEmptyUsername is returned when a raw username is empty, or degenerates
// to nothing once tags and punctuation are stripped.
var ErrEmptyUsername = errors.New("username empty after normalization")

// defaultTags are streaming/platform/clan tokens that routinely decorate
// usernames on scoreboards without being part of the name. Matching is
// case-insensitive; brackets and separators around a tag are handled by
// tokenization.
var defaultTags = []string{
	"ttv", "twitch", "yt", "youtube", "live", "stream", "tv",
	"dvs", "ktk", "gvg", "zmr", "nvf",
	"faze", "tsm", "nrg", "og", "clan", "team", "esports",
}

// minGluedRemainder guards glued-tag stripping ("TTVHeartless"): the tag is
// only removed when at least this many characters remain, so short real
// names are not mangled.
const minGluedRemainder = 4

// Normalizer canonicalizes raw usernames into comparison keys. Keys are a
// matching artifact only; display always uses an original alias.
type Normalizer struct {
	tags map[string]struct{}

	// ordered holds the tags longest-first so glued stripping always peels
	// the longest matching tag ("ttv" before "tv").
	ordered []string
}

// NewNormalizer builds a normalizer with the default tag set plus any extra
// tags from configuration.
func NewNormalizer(extraTags ...string) *Normalizer {
	tags := make(map[string]struct{}, len(defaultTags)+len(extraTags))
	for _, t := range defaultTags {
		tags[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range extraTags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			tags[t] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(tags))
	for t := range tags {
		ordered = append(ordered, t)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	return &Normalizer{tags: tags, ordered: ordered}
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// tokenize lowercases the input, maps every separator and bracket character
// to a single delimiter, drops all other punctuation, and splits into
// tokens. "[TTV] Heart_Maddi" -> ["ttv", "heart", "maddi"].
func tokenize(s string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case isAlnum(r):
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '.' || r == '-' ||
			r == '[' || r == ']' || r == '(' || r == ')' ||
			r == '{' || r == '}' || r == '<' || r == '>' || r == '|':
			b.WriteByte('_')
		}
		// Everything else (emoji, stray OCR glyphs) is dropped.
	}
	parts := strings.Split(b.String(), "_")
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// stripTags removes tag tokens, but never all of them: if every token is a
// tag the name genuinely is that string. Glued prefixes/suffixes are peeled
// off conservatively.
func (n *Normalizer) stripTags(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, isTag := n.tags[tok]; !isTag {
			kept = append(kept, n.stripGlued(tok))
		}
	}
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

func (n *Normalizer) stripGlued(tok string) string {
	for _, tag := range n.ordered {
		if strings.HasPrefix(tok, tag) && len(tok)-len(tag) >= minGluedRemainder {
			return tok[len(tag):]
		}
		if strings.HasSuffix(tok, tag) && len(tok)-len(tag) >= minGluedRemainder {
			return tok[:len(tok)-len(tag)]
		}
	}
	return tok
}

// Key derives the comparison key for a raw username: case-folded, trimmed,
// tags stripped, separators collapsed and removed. Fails only when nothing
// identifiable remains.
func (n *Normalizer) Key(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyUsername
	}
	tokens := n.stripTags(tokenize(trimmed))
	key := strings.Join(tokens, "")
	if key == "" {
		return "", ErrEmptyUsername
	}
	return key, nil
}

// Display strips tag tokens from an alias while preserving its original
// casing and token separation. Used when choosing a canonical username;
// never used for matching.
func (n *Normalizer) Display(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Re-tokenize preserving case: same separator treatment as tokenize.
	var b strings.Builder
	for _, r := range trimmed {
		switch {
		case isAlnum(r):
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '.' || r == '-' ||
			r == '[' || r == ']' || r == '(' || r == ')' ||
			r == '{' || r == '}' || r == '<' || r == '>' || r == '|':
			b.WriteByte('_')
		}
	}
	parts := strings.Split(b.String(), "_")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, isTag := n.tags[strings.ToLower(p)]; !isTag {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		// Pure-tag name: the tag is the name.
		for _, p := range parts {
			if p != "" {
				kept = append(kept, p)
			}
		}
	}
	return strings.Join(kept, "_")
}
