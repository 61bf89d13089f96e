package main

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// rasterizeRegion 将矢量源裁剪到 crop 矩形并栅格化为 size 方形 PNG
// 每次独立解析源数据, 各渲染 worker 之间无共享可变状态
func rasterizeRegion(svgData []byte, crop cropRect, size int) ([]byte, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}
	// 重写 viewBox 实现裁剪
	icon.ViewBox.X = crop.X
	icon.ViewBox.Y = crop.Y
	icon.ViewBox.W = crop.W
	icon.ViewBox.H = crop.H
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// transparentTile 全透明瓦片, 用于宽高比裁掉的行与定居点渲染兜底
func transparentTile(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	b, _ := encodePNG(img)
	return b
}

// fallbackTile 半透明红色兜底瓦片: 单片渲染失败时降级, 不中断批任务
func fallbackTile(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{R: 200, A: 80}}, image.Point{}, draw.Src)
	b, _ := encodePNG(img)
	return b
}
