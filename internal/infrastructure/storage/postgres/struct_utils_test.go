package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fretops/internal/core/entity"
)

type mockEntity struct {
	entity.BaseEntity
	Bureau  string  `db:"bureau" json:"bureau"`
	Regime  string  `db:"regime" json:"regime"`
	Skipped string  `db:"-" json:"skipped"`
	NoTag   string  `json:"noTag"`
	Code    *string `db:"code_dossier" json:"codeDossier"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockEntity]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_at", "bureau", "regime", "code_dossier",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.NotContains(t, cols, "Skipped")
	assert.NotContains(t, cols, "NoTag")
}

func TestStructToMap(t *testing.T) {
	code := "DOS-2026-001"
	e := mockEntity{
		BaseEntity: entity.NewBaseEntity(),
		Bureau:     "Casablanca",
		Regime:     "10",
		Skipped:    "ignored",
		NoTag:      "ignored",
		Code:       &code,
	}
	e.Version = 3

	m := StructToMap(e)

	assert.Equal(t, e.ID, m["id"])
	assert.Equal(t, 3, m["version"])
	assert.Equal(t, "Casablanca", m["bureau"])
	assert.Equal(t, "10", m["regime"])
	assert.Equal(t, &code, m["code_dossier"])
	assert.NotContains(t, m, "Skipped")
	assert.NotContains(t, m, "-")
}

func TestStructToMap_Pointer(t *testing.T) {
	e := &mockEntity{BaseEntity: entity.NewBaseEntity(), Bureau: "Tanger Med"}
	m := StructToMap(e)
	assert.Equal(t, "Tanger Med", m["bureau"])
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap("nope"))
}
