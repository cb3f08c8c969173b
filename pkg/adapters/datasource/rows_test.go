package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/herdwise/pkg/models"
)

func TestBuildInsert(t *testing.T) {
	rec, err := models.NewAnalyticsRecord(map[string]string{
		"unique_id":  "F001-1",
		"farm_code":  "F001",
		"dc_percent": "6.5",
		"reason":     "NULL",
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		style PlaceholderStyle
		want  string
	}{
		{"question", QuestionPlaceholders, "INSERT INTO swine_alert (unique_id, farm_code, dc_percent) VALUES (?, ?, ?)"},
		{"dollar", DollarPlaceholders, "INSERT INTO swine_alert (unique_id, farm_code, dc_percent) VALUES ($1, $2, $3)"},
		{"at-p", AtPPlaceholders, "INSERT INTO swine_alert (unique_id, farm_code, dc_percent) VALUES (@p1, @p2, @p3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, args := BuildInsert(rec, tt.style)
			assert.Equal(t, tt.want, stmt)
			assert.Equal(t, []any{"F001-1", "F001", 6.5}, args)
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "abc", NormalizeValue([]byte("abc")))
	assert.Equal(t, "2024-02-29", NormalizeValue(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-29T13:45:00Z", NormalizeValue(time.Date(2024, 2, 29, 13, 45, 0, 0, time.UTC)))
	assert.Equal(t, int64(3), NormalizeValue(int64(3)))
	assert.Nil(t, NormalizeValue(nil))
}
