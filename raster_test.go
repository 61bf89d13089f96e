package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="200" height="100" viewBox="0 0 200 100">
<rect x="0" y="0" width="100" height="100" fill="#ff0000"/>
<rect x="100" y="0" width="100" height="100" fill="#0000ff"/>
</svg>`

func TestRasterizeRegionFull(t *testing.T) {
	data, err := rasterizeRegion([]byte(testSVG), cropRect{X: 0, Y: 0, W: 200, H: 100}, 64)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	// 左半红右半蓝
	r, _, b, _ := img.At(10, 32).RGBA()
	assert.Greater(t, r, b)
	r, _, b, _ = img.At(54, 32).RGBA()
	assert.Greater(t, b, r)
}

func TestRasterizeRegionCrop(t *testing.T) {
	// 只裁右半, 整片应为蓝色
	data, err := rasterizeRegion([]byte(testSVG), cropRect{X: 100, Y: 0, W: 100, H: 100}, 32)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, _, b, _ := img.At(16, 16).RGBA()
	assert.Greater(t, b, r)
	r, _, b, _ = img.At(2, 16).RGBA()
	assert.Greater(t, b, r)
}

func TestRasterizeRegionBadSource(t *testing.T) {
	_, err := rasterizeRegion([]byte("<not-svg"), cropRect{W: 10, H: 10}, 16)
	assert.Error(t, err)
}

func TestSaveTileFile(t *testing.T) {
	dir := t.TempDir()
	tile := Tile{
		T: maptile.Tile{X: 3, Y: 5, Z: 2},
		C: []byte("png-bytes"),
	}
	require.NoError(t, saveTileFile(dir, tile))
	data, err := os.ReadFile(filepath.Join(dir, "2", "3", "5.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	world := &World{
		Name:           "azgaar",
		WidthPixels:    2000,
		HeightPixels:   1000,
		MetersPerPixel: 10,
		Bounds:         computeBounds(2000, 1000, 10),
	}
	task := &PyramidTask{World: world, OutDir: dir, Min: 0, Max: 3, TileSize: 256}
	require.NoError(t, task.writeManifest())

	data, err := os.ReadFile(filepath.Join(dir, "tileset.json"))
	require.NoError(t, err)
	var m TilesetManifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "azgaar", m.World)
	assert.Equal(t, 3, m.MaxZoom)
	assert.Equal(t, 2.0, m.AspectRatio)
	assert.Equal(t, -10000.0, m.Bounds.South)
}
