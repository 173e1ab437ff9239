package review

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
)

// PendingCities lists one suggestion per row cell whose city failed the
// gazetteer lookup, in row order.
func (s *Session) PendingCities() []model.CitySuggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	resolver := s.validator.Resolver()

	var out []model.CitySuggestion
	for _, row := range s.rows {
		for _, f := range row.Errors {
			if f.Code != model.CodeUnknownCity {
				continue
			}
			original := row.Data[f.Field]
			cs := model.CitySuggestion{
				OriginalCity: original,
				RowNumber:    row.RowNumber,
				FieldName:    f.Field,
			}
			if resolver != nil {
				cs.Suggestions = resolver.FindSuggestions(original)
				if len(cs.Suggestions) > 0 {
					cs.SuggestedCity = cs.Suggestions[0]
				}
			}
			out = append(out, cs)
		}
	}
	return out
}

// ResolveCity rewrites every pending city cell spelled original to resolved
// and re-validates the affected rows. The finding persists when resolved is
// itself unknown. It returns the number of rows rewritten.
func (s *Session) ResolveCity(original, resolved string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	return s.resolveCityLocked(original, resolved), nil
}

func (s *Session) resolveCityLocked(original, resolved string) int {
	resolved = strings.TrimSpace(resolved)
	if resolved == "" {
		return 0
	}
	// Prefer the gazetteer's own spelling of the target.
	if r := s.validator.Resolver(); r != nil {
		if c, ok := r.Gazetteer().Lookup(resolved); ok {
			resolved = c.Name
		}
	}
	want := city.Key(original)

	n := 0
	for _, row := range s.rows {
		changed := false
		for _, f := range row.Errors {
			if f.Code != model.CodeUnknownCity || city.Key(row.Data[f.Field]) != want {
				continue
			}
			row.Data[f.Field] = resolved
			changed = true
		}
		if changed {
			s.revalidateLocked(row)
			n++
		}
	}
	if n > 0 {
		s.log.Info("review: city resolved",
			zap.String("original", original),
			zap.String("resolved", resolved),
			zap.Int("rows", n),
		)
	}
	return n
}
