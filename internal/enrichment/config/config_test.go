package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"enrichd/internal/enrichment/models"
)

// =============================================================================
// Enrichment Configuration Tests
// =============================================================================

func TestRetentionWindow(t *testing.T) {
	assert.Equal(t, 7*24*time.Hour, RetentionWindow(models.DataTypeDrivingRecord))
	assert.Equal(t, 30*24*time.Hour, RetentionWindow(models.DataTypePriorClaims))
	assert.Equal(t, 30*24*time.Hour, RetentionWindow(models.DataTypeCredit))
	assert.Equal(t, 7*24*time.Hour, RetentionWindow(models.DataTypeBackground))
}

func TestDefaultDataTypes(t *testing.T) {
	assert.Equal(t, models.AllDataTypes(), DefaultDataTypes(models.EntityKindPolicy))
	assert.NotContains(t, DefaultDataTypes(models.EntityKindClaim), models.DataTypeDrivingRecord)
	assert.Len(t, DefaultDataTypes(models.EntityKindClaim), 3)
}

func TestNormalizeDataTypes(t *testing.T) {
	t.Run("empty request falls back to defaults", func(t *testing.T) {
		assert.Equal(t, DefaultDataTypes(models.EntityKindPolicy),
			NormalizeDataTypes(models.EntityKindPolicy, nil))
	})

	t.Run("drops duplicates preserving order", func(t *testing.T) {
		got := NormalizeDataTypes(models.EntityKindPolicy, []models.DataType{
			models.DataTypeCredit, models.DataTypeBackground, models.DataTypeCredit,
		})
		assert.Equal(t, []models.DataType{models.DataTypeCredit, models.DataTypeBackground}, got)
	})

	t.Run("drops unknown types", func(t *testing.T) {
		got := NormalizeDataTypes(models.EntityKindPolicy, []models.DataType{
			"astrology", models.DataTypeCredit,
		})
		assert.Equal(t, []models.DataType{models.DataTypeCredit}, got)
	})

	t.Run("claims never include driving records", func(t *testing.T) {
		got := NormalizeDataTypes(models.EntityKindClaim, []models.DataType{
			models.DataTypeDrivingRecord, models.DataTypeCredit,
		})
		assert.Equal(t, []models.DataType{models.DataTypeCredit}, got)
	})

	t.Run("all-invalid request falls back to defaults", func(t *testing.T) {
		got := NormalizeDataTypes(models.EntityKindClaim, []models.DataType{models.DataTypeDrivingRecord})
		assert.Equal(t, DefaultDataTypes(models.EntityKindClaim), got)
	})
}
