package main

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCategory(t *testing.T) {
	for _, c := range []string{"encounter", "rumour", "narrative", "travel", "custom"} {
		assert.NoError(t, validateCategory(c))
	}
	assert.Error(t, validateCategory("Encounter"))
	assert.Error(t, validateCategory("dungeon"))
	assert.Error(t, validateCategory(""))
}

func TestNormalizeColor(t *testing.T) {
	c, err := normalizeColor("AABBCC")
	require.NoError(t, err)
	assert.Equal(t, "#aabbcc", c)

	c, err = normalizeColor("#123abc")
	require.NoError(t, err)
	assert.Equal(t, "#123abc", c)

	for _, bad := range []string{"", "#fff", "zzzzzz", "#1234567"} {
		_, err := normalizeColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestNormalizeMetadata(t *testing.T) {
	m, err := normalizeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", m)

	m, err = normalizeMetadata(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Equal(t, "{}", m)

	m, err = normalizeMetadata(json.RawMessage(`{"danger":3}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"danger":3}`, m)

	// 字符串包裹的对象同样接受
	m, err = normalizeMetadata(json.RawMessage(`"{\"danger\":3}"`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"danger":3}`, m)

	_, err = normalizeMetadata(json.RawMessage(`[1,2,3]`))
	assert.Error(t, err)
	_, err = normalizeMetadata(json.RawMessage(`"plain text"`))
	assert.Error(t, err)
}

func TestNormalizeRegionGeometry(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	mp, err := normalizeRegionGeometry(geojson.NewGeometry(poly))
	require.NoError(t, err)
	require.Len(t, mp, 1)

	mp2, err := normalizeRegionGeometry(geojson.NewGeometry(orb.MultiPolygon{poly}))
	require.NoError(t, err)
	assert.Equal(t, mp, mp2)

	_, err = normalizeRegionGeometry(nil)
	assert.Error(t, err)
	_, err = normalizeRegionGeometry(geojson.NewGeometry(orb.Point{1, 1}))
	assert.Error(t, err)
	_, err = normalizeRegionGeometry(geojson.NewGeometry(orb.LineString{{0, 0}, {1, 1}}))
	assert.Error(t, err)
}
