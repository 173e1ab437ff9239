// Package city holds the gazetteer of known city names and the resolver that
// classifies free-text city cells against it.
package city

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/crm-import/internal/model"
)

// ErrCodeTaken is returned when adding a city whose code belongs to another entry.
var ErrCodeTaken = eris.New("city: code already assigned")

// Persister is the external city registry that durable additions are handed to.
type Persister interface {
	AddCity(ctx context.Context, c model.City) error
}

// Key is the comparison form of a city name: trimmed, case-folded, with
// Arabic diacritics and tatweel removed. Letters are otherwise kept as-is.
func Key(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		if r == 'ـ' || unicode.Is(unicode.Mn, r) {
			return -1
		}
		return r
	}, s)
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Gazetteer is the append-only set of known cities.
type Gazetteer struct {
	mu      sync.RWMutex
	entries []model.City
	byKey   map[string]int
	byCode  map[string]int
}

// NewGazetteer builds a gazetteer from an initial city list. Blank names and
// duplicates are ignored; a duplicate code keeps the first owner.
func NewGazetteer(cities []model.City) *Gazetteer {
	g := &Gazetteer{
		byKey:  make(map[string]int, len(cities)),
		byCode: make(map[string]int, len(cities)),
	}
	for _, c := range cities {
		_ = g.add(c)
	}
	return g
}

func (g *Gazetteer) add(c model.City) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.TrimSpace(c.Code)
	if c.Name == "" {
		return eris.New("city: name is empty")
	}
	k := Key(c.Name)
	if idx, ok := g.byKey[k]; ok {
		if c.Code != "" && g.entries[idx].Code != "" && !strings.EqualFold(g.entries[idx].Code, c.Code) {
			return eris.Wrapf(ErrCodeTaken, "city %q already registered with code %s", c.Name, g.entries[idx].Code)
		}
		return nil
	}
	if c.Code != "" {
		if _, taken := g.byCode[strings.ToUpper(c.Code)]; taken {
			return eris.Wrapf(ErrCodeTaken, "code %s", c.Code)
		}
	}
	g.entries = append(g.entries, c)
	idx := len(g.entries) - 1
	g.byKey[k] = idx
	if c.Code != "" {
		g.byCode[strings.ToUpper(c.Code)] = idx
	}
	return nil
}

// Add appends a city. Re-adding a known name is a no-op; a code owned by a
// different city returns ErrCodeTaken.
func (g *Gazetteer) Add(c model.City) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.add(c)
}

// CheckAdd reports the error Add would return without mutating the gazetteer.
func (g *Gazetteer) CheckAdd(c model.City) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if strings.TrimSpace(c.Name) == "" {
		return eris.New("city: name is empty")
	}
	code := strings.ToUpper(strings.TrimSpace(c.Code))
	if code == "" {
		return nil
	}
	idx, taken := g.byCode[code]
	if taken && Key(g.entries[idx].Name) != Key(c.Name) {
		return eris.Wrapf(ErrCodeTaken, "code %s", c.Code)
	}
	if own, ok := g.byKey[Key(c.Name)]; ok && g.entries[own].Code != "" && !strings.EqualFold(g.entries[own].Code, code) {
		return eris.Wrapf(ErrCodeTaken, "city %q already registered with code %s", c.Name, g.entries[own].Code)
	}
	return nil
}

// Contains reports whether name is a known city.
func (g *Gazetteer) Contains(name string) bool {
	_, ok := g.Lookup(name)
	return ok
}

// Lookup returns the canonical entry for name.
func (g *Gazetteer) Lookup(name string) (model.City, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	idx, ok := g.byKey[Key(name)]
	if !ok {
		return model.City{}, false
	}
	return g.entries[idx], true
}

// Names returns the city names in insertion order.
func (g *Gazetteer) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.entries))
	for i, c := range g.entries {
		out[i] = c.Name
	}
	return out
}

// Cities returns a copy of the entries in insertion order.
func (g *Gazetteer) Cities() []model.City {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]model.City(nil), g.entries...)
}

// Len returns the number of known cities.
func (g *Gazetteer) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}

// Clone returns an independent copy, used to give each review session its own
// session-scoped growth.
func (g *Gazetteer) Clone() *Gazetteer {
	return NewGazetteer(g.Cities())
}
