package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    Date
		wantErr bool
	}{
		{"2024-01-15", NewDate(2024, time.January, 15), false},
		{"20240115", NewDate(2024, time.January, 15), false},
		{" 2024-12-31 ", NewDate(2024, time.December, 31), false},
		{"2024/01/15", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateArithmetic(t *testing.T) {
	d := MustParseDate("2024-02-28")

	assert.Equal(t, MustParseDate("2024-02-29"), d.AddDays(1))
	assert.Equal(t, MustParseDate("2024-03-01"), d.AddDays(2))
	assert.Equal(t, MustParseDate("2023-12-31"), MustParseDate("2024-01-01").AddDays(-1))
	assert.Equal(t, time.Wednesday, d.Weekday())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
}

func TestDateFormat(t *testing.T) {
	d := NewDate(2024, time.January, 5)
	assert.Equal(t, "2024-01-05", d.String())
	assert.Equal(t, "20240105", d.Compact())
	assert.Equal(t, "", Date(0).String())
}

func TestDateJSON(t *testing.T) {
	d := MustParseDate("2024-01-15")

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-15"`, string(data))

	var decoded Date
	require.NoError(t, json.Unmarshal([]byte(`"20240115"`), &decoded))
	assert.Equal(t, d, decoded)

	assert.Error(t, json.Unmarshal([]byte(`20240115`), &decoded))
}

func TestDateOfUsesLocalCalendar(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	late := time.Date(2024, time.January, 15, 23, 30, 0, 0, shanghai)
	assert.Equal(t, MustParseDate("2024-01-15"), DateOf(late))
}
