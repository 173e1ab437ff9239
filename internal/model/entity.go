package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// EntityType is the kind of record an import file describes.
type EntityType int

const (
	EntityCompanies EntityType = iota + 1
	EntityContracts
	EntityContractsAdvanced
	EntityBranches
)

var entityNames = map[EntityType]string{
	EntityCompanies:         "companies",
	EntityContracts:         "contracts",
	EntityContractsAdvanced: "contractsAdvanced",
	EntityBranches:          "branches",
}

// AllEntityTypes lists every supported entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityCompanies, EntityContracts, EntityContractsAdvanced, EntityBranches}
}

func (e EntityType) String() string {
	if n, ok := entityNames[e]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether e is a known entity type.
func (e EntityType) Valid() bool {
	_, ok := entityNames[e]
	return ok
}

// ParseEntityType resolves an entity name (case-insensitive, "-"/"_" tolerant).
func ParseEntityType(s string) (EntityType, error) {
	needle := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for e, name := range entityNames {
		if strings.ToLower(name) == needle {
			return e, nil
		}
	}
	return 0, eris.Errorf("model: unknown entity type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (e EntityType) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, eris.Errorf("model: unknown entity type %d", int(e))
	}
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *EntityType) UnmarshalText(b []byte) error {
	v, err := ParseEntityType(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
