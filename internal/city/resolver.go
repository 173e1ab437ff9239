package city

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// Defaults for resolver Options.
const (
	DefaultThreshold      = 0.6
	DefaultMaxSuggestions = 5
)

// minContainLen is the shortest side (in runes) allowed in a containment match.
const minContainLen = 2

// Options tunes suggestion ranking.
type Options struct {
	// Threshold is the exclusive lower bound on similarity for fuzzy suggestions.
	Threshold float64
	// MaxSuggestions caps the returned suggestions.
	MaxSuggestions int
	// Unsorted keeps fuzzy hits in gazetteer order instead of by descending similarity.
	Unsorted bool
}

// Validation is the outcome of ValidateCity.
type Validation struct {
	IsValid     bool     `json:"isValid"`
	Canonical   string   `json:"canonical,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Resolver classifies city names against a gazetteer.
type Resolver struct {
	gaz  *Gazetteer
	opts Options
}

// NewResolver creates a Resolver over gaz.
func NewResolver(gaz *Gazetteer, opts Options) *Resolver {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	return &Resolver{gaz: gaz, opts: opts}
}

// Gazetteer returns the underlying gazetteer.
func (r *Resolver) Gazetteer() *Gazetteer {
	return r.gaz
}

// ValidateCity reports whether name is known and, when it is not, the ranked suggestions.
func (r *Resolver) ValidateCity(name string) Validation {
	if c, ok := r.gaz.Lookup(name); ok {
		return Validation{IsValid: true, Canonical: c.Name}
	}
	return Validation{Suggestions: r.FindSuggestions(name)}
}

// FindSuggestions returns up to MaxSuggestions candidates for name.
// Containment hits (either direction) come first in gazetteer order; when
// there are none, entries are ranked by normalized edit-distance similarity.
func (r *Resolver) FindSuggestions(name string) []string {
	needle := Key(name)
	if needle == "" {
		return nil
	}
	names := r.gaz.Names()

	var contained []string
	for _, n := range names {
		k := Key(n)
		if k == needle {
			continue
		}
		if containsEither(k, needle) {
			contained = append(contained, n)
			if len(contained) == r.opts.MaxSuggestions {
				break
			}
		}
	}
	if len(contained) > 0 {
		return contained
	}

	type scored struct {
		name string
		sim  float64
	}
	var hits []scored
	for _, n := range names {
		if sim := Similarity(needle, Key(n)); sim > r.opts.Threshold {
			hits = append(hits, scored{name: n, sim: sim})
		}
	}
	if !r.opts.Unsorted {
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	}
	if len(hits) > r.opts.MaxSuggestions {
		hits = hits[:r.opts.MaxSuggestions]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

// Similarity is (maxLen - distance) / maxLen over code points, in [0, 1].
func Similarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.Distance(a, b, nil)
	return float64(maxLen-d) / float64(maxLen)
}

func containsEither(a, b string) bool {
	short, long := a, b
	if utf8.RuneCountInString(short) > utf8.RuneCountInString(long) {
		short, long = long, short
	}
	return utf8.RuneCountInString(short) >= minContainLen && strings.Contains(long, short)
}
