package main

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileCounts(t *testing.T) {
	assert.Equal(t, 1, tileCountX(0))
	assert.Equal(t, 8, tileCountX(3))

	// 2:1 宽图
	assert.Equal(t, 1, tileCountY(0, 2.0))
	assert.Equal(t, 1, tileCountY(1, 2.0))
	assert.Equal(t, 2, tileCountY(2, 2.0))
	assert.Equal(t, 4, tileCountY(3, 2.0))

	// 方图退化为标准网格
	assert.Equal(t, 8, tileCountY(3, 1.0))

	// 1:2 高图, 纵向瓦片数超过 2^z
	assert.Equal(t, 16, tileCountY(3, 0.5))
}

func TestZoomRows(t *testing.T) {
	// 宽图迭代满方形网格, 多出的行落透明瓦片
	assert.Equal(t, 8, zoomRows(3, 2.0))
	// 高图迭代到 ny, 保证整图可达
	assert.Equal(t, 16, zoomRows(3, 0.5))
}

func TestTileCropRect(t *testing.T) {
	// 2000x1000 源图, z=3: nx=8, ny=4, 每片 250x250 源像素
	mt := maptile.Tile{X: 0, Y: 3, Z: 3}
	crop := tileCropRect(mt, 2000, 1000, 2.0)
	assert.Equal(t, 0.0, crop.X)
	assert.Equal(t, 750.0, crop.Y)
	assert.Equal(t, 250.0, crop.W)
	assert.Equal(t, 250.0, crop.H)

	mt = maptile.Tile{X: 7, Y: 0, Z: 3}
	crop = tileCropRect(mt, 2000, 1000, 2.0)
	assert.Equal(t, 1750.0, crop.X)
	assert.Equal(t, 0.0, crop.Y)
}

func TestTransparentTile(t *testing.T) {
	data := transparentTile(64)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 64, img.Bounds().Dy())
	for _, p := range [][2]int{{0, 0}, {32, 32}, {63, 63}} {
		_, _, _, a := img.At(p[0], p[1]).RGBA()
		assert.Zero(t, a, "pixel %v should be transparent", p)
	}
}

func TestFallbackTileIsTranslucent(t *testing.T) {
	data := fallbackTile(32)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, _, _, a := img.At(16, 16).RGBA()
	assert.NotZero(t, a)
	assert.NotZero(t, r)
}

func TestComputeBounds(t *testing.T) {
	b := computeBounds(2000, 1000, 10)
	assert.Equal(t, 0.0, b.North)
	assert.Equal(t, 0.0, b.West)
	assert.Equal(t, -10000.0, b.South)
	assert.Equal(t, 20000.0, b.East)
	assert.Equal(t, 10.0, b.MetersPerPixel)
}

func TestWorldAspectRatio(t *testing.T) {
	w := &World{WidthPixels: 2000, HeightPixels: 1000}
	assert.Equal(t, 2.0, w.AspectRatio())
}
