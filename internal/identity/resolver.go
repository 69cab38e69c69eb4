package identity

import (
	"sort"
	"strings"

	"github.com/ballistic/scorecard-api/internal/models"
)

// Config controls the optional fuzzy refinement pass. Exact-key matching is
// always on; fuzzy merging is gated because over-aggressive thresholds risk
// merging distinct players.
type Config struct {
	Fuzzy       bool
	MaxDistance int
}

// Resolver clusters raw usernames into player identities.
type Resolver struct {
	norm *Normalizer
	cfg  Config
}

func NewResolver(norm *Normalizer, cfg Config) *Resolver {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = 1
	}
	return &Resolver{norm: norm, cfg: cfg}
}

// Normalizer exposes the resolver's normalizer so collaborators share one
// tag set.
func (r *Resolver) Normalizer() *Normalizer { return r.norm }

// Resolution maps each input record to a resolved identity.
type Resolution struct {
	// Identities are the distinct identities found in the batch, in
	// deterministic order.
	Identities []models.PlayerIdentity

	// RecordIdentity[i] indexes into Identities for records[i]; -1 means the
	// record was skipped.
	RecordIdentity []int

	// Skipped lists records dropped because their username was empty or
	// degenerate after normalization.
	Skipped []models.SkippedRecord
}

// Resolve clusters the batch and, when prior is non-nil, attaches clusters
// to the identities already on the leaderboard. The result is independent
// of record order: grouping is by normalized key, the fuzzy pass works over
// the complete key set, and all tie-breaks are lexicographic.
func (r *Resolver) Resolve(records []models.RawMatchRecord, prior *models.Leaderboard) *Resolution {
	res := &Resolution{RecordIdentity: make([]int, len(records))}

	// Baseline: group records whose keys are exactly equal.
	type group struct {
		aliases map[string]struct{}
		records []int
	}
	groups := map[string]*group{}
	for i, rec := range records {
		key, err := r.norm.Key(rec.RawUsername)
		if err != nil {
			res.RecordIdentity[i] = -1
			res.Skipped = append(res.Skipped, models.SkippedRecord{
				RawUsername:   rec.RawUsername,
				Team:          rec.Team,
				SourceImageID: rec.SourceImageID,
				Reason:        err.Error(),
			})
			continue
		}
		g, ok := groups[key]
		if !ok {
			g = &group{aliases: map[string]struct{}{}}
			groups[key] = g
		}
		g.aliases[rec.RawUsername] = struct{}{}
		g.records = append(g.records, i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Fuzzy refinement: union groups whose keys are within the edit-distance
	// bound, unless either key collides by substring with an unrelated third
	// group. Edges are computed over the full sorted key set, so the merge
	// is order-independent and idempotent.
	parent := make(map[string]string, len(keys))
	for _, k := range keys {
		parent[k] = k
	}
	var find func(string) string
	find = func(k string) string {
		if parent[k] != k {
			parent[k] = find(parent[k])
		}
		return parent[k]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		// Smaller root wins, keeping the forest deterministic.
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}
	if r.cfg.Fuzzy {
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				a, b := keys[i], keys[j]
				if editDistance(a, b) > r.cfg.MaxDistance {
					continue
				}
				if r.substringCollision(a, b, keys) {
					continue
				}
				union(a, b)
			}
		}
	}

	// Collect clusters keyed by their root, in sorted-root order.
	clusterAliases := map[string]map[string]struct{}{}
	clusterRecords := map[string][]int{}
	roots := make([]string, 0, len(keys))
	for _, k := range keys {
		root := find(k)
		if _, seen := clusterAliases[root]; !seen {
			clusterAliases[root] = map[string]struct{}{}
			roots = append(roots, root)
		}
		for a := range groups[k].aliases {
			clusterAliases[root][a] = struct{}{}
		}
		clusterRecords[root] = append(clusterRecords[root], groups[k].records...)
	}
	sort.Strings(roots)

	// Attach each cluster to a prior identity where one matches, otherwise
	// mint a new identity from the cluster's aliases.
	var priorKeys map[string]int // alias key -> prior entry index
	if prior != nil {
		priorKeys = make(map[string]int)
		for idx, entry := range prior.Entries {
			for _, alias := range entry.Identity.Aliases {
				if key, err := r.norm.Key(alias); err == nil {
					if _, taken := priorKeys[key]; !taken {
						priorKeys[key] = idx
					}
				}
			}
		}
	}

	for _, root := range roots {
		aliases := sortedAliases(clusterAliases[root])
		clusterKeys := r.aliasKeys(aliases)

		identity := models.PlayerIdentity{}
		if prior != nil {
			if idx, ok := r.matchPrior(clusterKeys, priorKeys); ok {
				identity = prior.Entries[idx].Identity
				// Detach from the prior's backing array; AddAlias below
				// must never write into the snapshot's alias slice.
				identity.Aliases = append([]string(nil), identity.Aliases...)
			}
		}
		for _, a := range aliases {
			identity.AddAlias(a)
		}
		identity.CanonicalUsername = r.Canonical(identity.Aliases)

		id := len(res.Identities)
		res.Identities = append(res.Identities, identity)
		for _, recIdx := range clusterRecords[root] {
			res.RecordIdentity[recIdx] = id
		}
	}

	return res
}

// MatchEntry finds the prior leaderboard entry whose identity matches any of
// the given aliases, using the same exact-then-fuzzy rule as batch
// resolution. Returns -1 when no entry matches.
func (r *Resolver) MatchEntry(prior *models.Leaderboard, aliases []string) int {
	priorKeys := make(map[string]int)
	for idx, entry := range prior.Entries {
		for _, alias := range entry.Identity.Aliases {
			if key, err := r.norm.Key(alias); err == nil {
				if _, taken := priorKeys[key]; !taken {
					priorKeys[key] = idx
				}
			}
		}
	}
	if idx, ok := r.matchPrior(r.aliasKeys(aliases), priorKeys); ok {
		return idx
	}
	return -1
}

func (r *Resolver) aliasKeys(aliases []string) []string {
	keys := make([]string, 0, len(aliases))
	seen := map[string]struct{}{}
	for _, a := range aliases {
		if key, err := r.norm.Key(a); err == nil {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// matchPrior prefers an exact key match; with fuzzy enabled it falls back to
// the closest prior key within the distance bound, breaking ties by the
// lexicographically smallest prior key.
func (r *Resolver) matchPrior(clusterKeys []string, priorKeys map[string]int) (int, bool) {
	for _, k := range clusterKeys {
		if idx, ok := priorKeys[k]; ok {
			return idx, true
		}
	}
	if !r.cfg.Fuzzy {
		return 0, false
	}

	sorted := make([]string, 0, len(priorKeys))
	for k := range priorKeys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	bestDist := r.cfg.MaxDistance + 1
	bestIdx, found := 0, false
	for _, pk := range sorted {
		for _, ck := range clusterKeys {
			if d := editDistance(ck, pk); d < bestDist {
				bestDist = d
				bestIdx = priorKeys[pk]
				found = true
			}
		}
	}
	return bestIdx, found
}

// substringCollision reports whether merging keys a and b would be ambiguous
// because some unrelated group's key contains, or is contained in, either
// one. Conservative by design of the threshold: skipping a merge only costs
// a duplicate row, while a false merge corrupts two players' stats.
func (r *Resolver) substringCollision(a, b string, keys []string) bool {
	for _, k := range keys {
		if k == a || k == b {
			continue
		}
		if strings.Contains(k, a) || strings.Contains(a, k) ||
			strings.Contains(k, b) || strings.Contains(b, k) {
			return true
		}
	}
	return false
}

// Canonical picks the display name for a set of aliases: the longest
// tag-stripped display form wins, ties broken by smallest byte order so the
// choice never depends on observation order.
func (r *Resolver) Canonical(aliases []string) string {
	best := ""
	for _, a := range aliases {
		d := r.norm.Display(a)
		if d == "" {
			continue
		}
		if len(d) > len(best) || (len(d) == len(best) && d < best) {
			best = d
		}
	}
	if best == "" && len(aliases) > 0 {
		// Every alias degenerate; fall back to the smallest raw alias.
		sorted := append([]string(nil), aliases...)
		sort.Strings(sorted)
		best = sorted[0]
	}
	return best
}

func sortedAliases(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// editDistance is the Levenshtein distance between two keys. Keys are short
// ASCII strings, so the quadratic DP is fine.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
