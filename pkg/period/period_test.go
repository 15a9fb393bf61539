package period_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/hrms-backend/pkg/period"
)

func TestParse(t *testing.T) {
	tests := []struct {
		month   string
		year    string
		want    period.Period
		wantErr bool
	}{
		{"January", "2026", period.Period{Month: time.January, Year: 2026}, false},
		{"december", "2025", period.Period{Month: time.December, Year: 2025}, false},
		{"3", "2026", period.Period{Month: time.March, Year: 2026}, false},
		{"Januar", "2026", period.Period{}, true},
		{"0", "2026", period.Period{}, true},
		{"13", "2026", period.Period{}, true},
		{"January", "26", period.Period{}, true},
		{"January", "abc", period.Period{}, true},
	}

	for _, tt := range tests {
		got, err := period.Parse(tt.month, tt.year)
		if tt.wantErr {
			assert.Error(t, err, "%s %s", tt.month, tt.year)
			continue
		}
		require.NoError(t, err, "%s %s", tt.month, tt.year)
		assert.Equal(t, tt.want, got)
	}
}

func TestOrdering(t *testing.T) {
	dec25 := period.Period{Month: time.December, Year: 2025}
	jan26 := period.Period{Month: time.January, Year: 2026}

	assert.True(t, dec25.Before(jan26))
	assert.True(t, jan26.After(dec25))
	assert.Equal(t, jan26, dec25.Next())
	assert.Equal(t, jan26.Index(), dec25.Index()+1)
}

func TestAddMonthsNormalizes(t *testing.T) {
	nov := period.Period{Month: time.November, Year: 2025}
	assert.Equal(t, period.Period{Month: time.February, Year: 2026}, nov.AddMonths(3))
}

func TestJSONRoundTrip(t *testing.T) {
	p := period.Period{Month: time.March, Year: 2026}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"month":"March","year":"2026"}`, string(data))

	var back period.Period
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var p period.Period
	assert.Error(t, json.Unmarshal([]byte(`{"month":"Smarch","year":"2026"}`), &p))
}
