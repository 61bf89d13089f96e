package main

import (
	"math"

	"github.com/paulmach/orb/maptile"
)

// TileSize 默认瓦片大小
const TileSize = 256

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 20

// Tile 自定义瓦片存储
type Tile struct {
	T maptile.Tile
	C []byte
}

// tileCountX 标准方形网格横向瓦片数, 瓦片客户端约定为 2^z
func tileCountX(z int) int {
	return 1 << uint(z)
}

// tileCountY 纵向瓦片数由真实宽高比决定: max(1, round(2^z / aspect))
// 方形网格中 y >= ny 的行不对应任何源区域, 渲染为全透明
func tileCountY(z int, aspect float64) int {
	ny := int(math.Round(float64(tileCountX(z)) / aspect))
	if ny < 1 {
		return 1
	}
	return ny
}

// cropRect 瓦片 (z,x,y) 在源图坐标系中的裁剪矩形
// 以源图原生分辨率直接裁剪矢量, 避免先出低级别栅格再放大的模糊
type cropRect struct {
	X, Y, W, H float64
}

func tileCropRect(t maptile.Tile, srcW, srcH float64, aspect float64) cropRect {
	nx := float64(tileCountX(int(t.Z)))
	ny := float64(tileCountY(int(t.Z), aspect))
	tw := srcW / nx
	th := srcH / ny
	return cropRect{
		X: float64(t.X) * tw,
		Y: float64(t.Y) * th,
		W: tw,
		H: th,
	}
}
