package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

func TestFormatSummary(t *testing.T) {
	var buf bytes.Buffer
	formatSummary(&buf, review.Summary{
		Entity:      model.EntityBranches,
		TotalRows:   5,
		ValidRows:   3,
		ErrorRows:   2,
		SkippedRows: 1,
		Errors:      map[string]int{"city: unknown city": 2, "branchName: required": 1},
	})

	out := buf.String()
	assert.Contains(t, out, "branches")
	assert.Contains(t, out, "Skipped empty:")
	assert.NotContains(t, out, "Warnings:")
	// Buckets are ordered by descending count.
	assert.Less(t, strings.Index(out, "city: unknown city"), strings.Index(out, "branchName: required"))
}

func TestFormatImportsList(t *testing.T) {
	var buf bytes.Buffer
	formatImportsList(&buf, []model.ImportRun{{
		ID:        "0123456789abcdef",
		Entity:    model.EntityContracts,
		Source:    "contracts.xlsx",
		TotalRows: 10,
		Imported:  8,
		ErrorRows: 2,
		CreatedAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "contracts.xlsx")
	assert.Contains(t, out, "2024-03-01 10:30")
}

func TestFormatPendingCities(t *testing.T) {
	var buf bytes.Buffer
	formatPendingCities(&buf, []model.CitySuggestion{{
		OriginalCity: "جده",
		Suggestions:  []string{"جدة", "جازان"},
		RowNumber:    4,
		FieldName:    model.KeyCity,
	}})
	assert.Contains(t, buf.String(), "جدة, جازان")
}

func TestFormatCities(t *testing.T) {
	var buf bytes.Buffer
	formatCities(&buf, []model.City{{Name: "الرياض", Code: "RUH"}, {Name: "عنيزة"}})
	assert.Contains(t, buf.String(), "RUH")
	assert.Contains(t, buf.String(), "عنيزة")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijk"))
}
