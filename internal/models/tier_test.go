package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTier(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		deadline time.Time
		want     Tier
	}{
		{"already past", now.Add(-time.Minute), TierHour},
		{"thirty minutes", now.Add(30 * time.Minute), TierHour},
		{"exactly one hour", now.Add(time.Hour), TierDay},
		{"twenty hours", now.Add(20 * time.Hour), TierDay},
		{"exactly one day", now.Add(24 * time.Hour), TierNew},
		{"next week", now.Add(7 * 24 * time.Hour), TierNew},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeTier(tc.deadline, now))
		})
	}
}

func TestParseDeadline_UsesUTCPlus8(t *testing.T) {
	deadline, err := ParseDeadline("2024-05-01 20:00:00")
	require.NoError(t, err)
	assert.True(t, deadline.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	_, err = ParseDeadline("tomorrow")
	assert.Error(t, err)
}

func TestTierMap_ScanMigratesLegacyFlags(t *testing.T) {
	var m TierMap
	require.NoError(t, m.Scan([]byte(`{"a":true,"b":false,"c":"day","d":"hour","e":"bogus"}`)))

	assert.Equal(t, TierMap{"a": TierNew, "c": TierDay, "d": TierHour}, m)
}

func TestTierMap_ScanEmpty(t *testing.T) {
	var m TierMap
	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	require.NoError(t, m.Scan(""))
	assert.Empty(t, m)
}

func TestTierMap_Value(t *testing.T) {
	v, err := TierMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = TierMap{"42": TierHour}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"42":"hour"}`, v.(string))
}

func TestTier_Rank(t *testing.T) {
	assert.Less(t, TierNew.Rank(), TierDay.Rank())
	assert.Less(t, TierDay.Rank(), TierHour.Rank())
	assert.False(t, Tier("soon").Valid())
}
