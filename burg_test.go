package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurgMaxZoom(t *testing.T) {
	assert.Equal(t, 4, burgMaxZoom(0))
	assert.Equal(t, 4, burgMaxZoom(999))
	assert.Equal(t, 5, burgMaxZoom(1000))
	assert.Equal(t, 5, burgMaxZoom(9999))
	assert.Equal(t, 6, burgMaxZoom(10000))
	assert.Equal(t, 6, burgMaxZoom(49999))
	assert.Equal(t, 7, burgMaxZoom(50000))
	assert.Equal(t, 7, burgMaxZoom(1000000))
}

func TestSynthesizeBurgArtDeterministic(t *testing.T) {
	b := &Burg{ID: 17, Name: "Novigrad", Population: 30000,
		Capital: true, Port: true, Walls: true, Plaza: true}
	first := synthesizeBurgArt(b)
	second := synthesizeBurgArt(b)
	assert.Equal(t, first.SVG, second.SVG)
	assert.Equal(t, first.MaxZoom, second.MaxZoom)

	// 不同 id 的布局不同
	other := synthesizeBurgArt(&Burg{ID: 18, Name: "Novigrad", Population: 30000,
		Capital: true, Port: true, Walls: true, Plaza: true})
	assert.NotEqual(t, first.SVG, other.SVG)
}

func TestSynthesizeBurgArtFeatures(t *testing.T) {
	art := synthesizeBurgArt(&Burg{ID: 1, Population: 500, Port: true, Walls: true, Temple: true})
	svg := string(art.SVG)
	require.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, "#7da7c4") // 水岸
	assert.Contains(t, svg, "#5a5246") // 城墙
	assert.Equal(t, 512.0, art.ViewW)
	assert.Equal(t, 4, art.MaxZoom)

	plain := synthesizeBurgArt(&Burg{ID: 2, Population: 500})
	assert.NotContains(t, string(plain.SVG), "#7da7c4")
	assert.NotContains(t, string(plain.SVG), "#5a5246")
}

func TestTerrainFill(t *testing.T) {
	assert.Equal(t, "#c9c2b2", terrainFill(80, ""))
	assert.Equal(t, "#dfe7e3", terrainFill(10, "Very cold"))
	assert.Equal(t, "#d9ceae", terrainFill(10, "warm"))
}

func TestGetBurgTileOutOfRange(t *testing.T) {
	svc := &BurgTileService{tileSize: 64}
	for _, c := range [][3]int{{2, 4, 0}, {2, 0, 4}, {2, -1, 0}, {0, 0, 1}} {
		data, err := svc.GetBurgTile(1, c[0], c[1], c[2])
		require.NoError(t, err)
		assert.Nil(t, data, "z=%d x=%d y=%d", c[0], c[1], c[2])
	}
}

func TestBurgTileRenderFromArt(t *testing.T) {
	art := synthesizeBurgArt(&Burg{ID: 3, Population: 2000, Walls: true})
	crop := cropRect{X: 0, Y: 0, W: art.ViewW, H: art.ViewH}
	data, err := rasterizeRegion(art.SVG, crop, 64)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
