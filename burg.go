package main

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
)

// BurgExtraZoom 对外放大余量: 信息接口上报 maxZoom 时附加的级别数
const BurgExtraZoom = 2

// Burg 定居点的结构化属性, 街区图完全由这些属性合成, 不依赖外部描图
type Burg struct {
	ID          int
	Name        string
	Population  int
	Capital     bool
	Port        bool
	Citadel     bool
	Walls       bool
	Plaza       bool
	Temple      bool
	Shanty      bool
	Culture     string
	Elevation   int
	Temperature string
}

// BurgArt 一次合成的矢量街区图与其描述子, 进程生命周期内缓存
type BurgArt struct {
	SVG     []byte
	ViewW   float64
	ViewH   float64
	MaxZoom int
}

// BurgInfo 定居点信息接口响应
type BurgInfo struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
	MaxZoom    int    `json:"max_zoom"`
	TileSize   int    `json:"tile_size"`
}

// GetBurg 读取定居点属性行
func (s *Store) GetBurg(worldID string, burgID int) (*Burg, error) {
	var b Burg
	var name, culture, temperature sql.NullString
	err := s.db.QueryRow(`SELECT burg_id, name, population, capital, port, citadel, walls,
			plaza, temple, shanty, culture, elevation, temperature
		FROM maps_burgs WHERE world_id = ? AND burg_id = ?`, worldID, burgID).
		Scan(&b.ID, &name, &b.Population, &b.Capital, &b.Port, &b.Citadel, &b.Walls,
			&b.Plaza, &b.Temple, &b.Shanty, &culture, &b.Elevation, &temperature)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("burg", fmt.Sprint(burgID))
	}
	if err != nil {
		return nil, err
	}
	b.Name = name.String
	b.Culture = culture.String
	b.Temperature = temperature.String
	return &b, nil
}

// BurgTileService 定居点瓦片服务
// 两级缓存: 内存缓存合成的矢量图(每进程每定居点最多合成一次),
// 磁盘缓存栅格瓦片(平移缩放反复请求的单元, 值得持久化)
type BurgTileService struct {
	store    *Store
	worldID  string
	diskDir  string
	tileSize int
	mem      *ristretto.Cache[int, *BurgArt]
}

func NewBurgTileService(st *Store, worldID, diskDir string, tileSize int) (*BurgTileService, error) {
	mem, err := ristretto.NewCache[int, *BurgArt](&ristretto.Config[int, *BurgArt]{
		NumCounters: 10000,
		MaxCost:     64 * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		tileSize = TileSize
	}
	return &BurgTileService{
		store:    st,
		worldID:  worldID,
		diskDir:  diskDir,
		tileSize: tileSize,
		mem:      mem,
	}, nil
}

// ensureBurg 确保矢量图已合成并缓存
// 未加单飞锁: 同一定居点的并发首次请求可能重复合成,
// 合成是确定性且幂等的, 先完成者占住缓存槽即可
func (svc *BurgTileService) ensureBurg(burgID int) (*BurgArt, error) {
	if art, ok := svc.mem.Get(burgID); ok {
		return art, nil
	}
	b, err := svc.store.GetBurg(svc.worldID, burgID)
	if err != nil {
		return nil, err
	}
	art := synthesizeBurgArt(b)
	svc.mem.Set(burgID, art, int64(len(art.SVG)))
	svc.mem.Wait()
	log.Debugf("burg %d synthesized, view %.0fx%.0f, maxZoom %d", burgID, art.ViewW, art.ViewH, art.MaxZoom)
	return art, nil
}

// GetBurgInfo 名称/人口/有效最大级别/瓦片尺寸
func (svc *BurgTileService) GetBurgInfo(burgID int) (*BurgInfo, error) {
	b, err := svc.store.GetBurg(svc.worldID, burgID)
	if err != nil {
		return nil, err
	}
	art, err := svc.ensureBurg(burgID)
	if err != nil {
		return nil, err
	}
	return &BurgInfo{
		Name:       b.Name,
		Population: b.Population,
		MaxZoom:    art.MaxZoom + BurgExtraZoom,
		TileSize:   svc.tileSize,
	}, nil
}

func (svc *BurgTileService) tilePath(burgID, z, x, y int) string {
	return filepath.Join(svc.diskDir, fmt.Sprint(burgID), fmt.Sprint(z), fmt.Sprint(x), fmt.Sprintf("%d.png", y))
}

// GetBurgTile 取定居点瓦片
// 越界返回 nil 而非错误; 磁盘缓存优先; 渲染失败降级为透明瓦片;
// 缓存写失败只记日志, 已生成的字节照常返回
func (svc *BurgTileService) GetBurgTile(burgID, z, x, y int) ([]byte, error) {
	n := 1 << uint(z)
	if x < 0 || y < 0 || x >= n || y >= n {
		return nil, nil
	}

	path := svc.tilePath(burgID, z, x, y)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	art, err := svc.ensureBurg(burgID)
	if err != nil {
		return nil, err
	}

	tw := art.ViewW / float64(n)
	th := art.ViewH / float64(n)
	crop := cropRect{X: float64(x) * tw, Y: float64(y) * th, W: tw, H: th}
	body, err := rasterizeRegion(art.SVG, crop, svc.tileSize)
	if err != nil {
		log.Warnf("render burg %d tile %d/%d/%d error, using transparent ~ %s", burgID, z, x, y, err)
		body = transparentTile(svc.tileSize)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Errorf("burg tile cache dir error ~ %s", err)
	} else if err := os.WriteFile(path, body, 0o644); err != nil {
		log.Errorf("burg tile cache write error ~ %s", err)
	}
	return body, nil
}

// burgMaxZoom 人口越多街区越细, 合成级别越深
func burgMaxZoom(population int) int {
	switch {
	case population < 1000:
		return 4
	case population < 10000:
		return 5
	case population < 50000:
		return 6
	default:
		return 7
	}
}

// terrainFill 地形底色, 海拔与温度共同决定
func terrainFill(elevation int, temperature string) string {
	if elevation > 60 {
		return "#c9c2b2"
	}
	if strings.Contains(strings.ToLower(temperature), "cold") {
		return "#dfe7e3"
	}
	return "#d9ceae"
}

// synthesizeBurgArt 由属性确定性合成街区矢量图
// 以 burg id 为随机种子, 同一定居点任何进程合成结果一致
func synthesizeBurgArt(b *Burg) *BurgArt {
	maxZoom := burgMaxZoom(b.Population)
	view := 512.0
	cx, cy := view/2, view/2
	rng := rand.New(rand.NewSource(int64(b.ID)))

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">`,
		view, view, view, view)
	fmt.Fprintf(&sb, `<rect width="%.0f" height="%.0f" fill="%s"/>`, view, view, terrainFill(b.Elevation, b.Temperature))

	// 港口: 一侧水岸与码头
	if b.Port {
		fmt.Fprintf(&sb, `<rect x="0" y="%.0f" width="%.0f" height="%.0f" fill="#7da7c4"/>`, view*0.82, view, view*0.18)
		for i := 0; i < 3; i++ {
			dx := view*0.25 + float64(i)*view*0.2
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="6" height="40" fill="#6b4f2a"/>`, dx, view*0.78)
		}
	}

	// 城墙: 圆形围郭
	wallR := view * 0.38
	if b.Walls {
		fmt.Fprintf(&sb, `<circle cx="%.0f" cy="%.0f" r="%.1f" fill="none" stroke="#5a5246" stroke-width="8"/>`, cx, cy, wallR)
	}

	// 街道: 自广场放射
	streets := 5 + b.Population/5000
	if streets > 12 {
		streets = 12
	}
	for i := 0; i < streets; i++ {
		ang := 2 * math.Pi * float64(i) / float64(streets)
		r := wallR * (0.85 + rng.Float64()*0.25)
		fmt.Fprintf(&sb, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#8a7f6d" stroke-width="4"/>`,
			cx, cy, cx+math.Cos(ang)*r, cy+math.Sin(ang)*r)
	}

	// 房屋: 数量随人口
	houses := 30 + b.Population/200
	if houses > 400 {
		houses = 400
	}
	for i := 0; i < houses; i++ {
		ang := rng.Float64() * 2 * math.Pi
		dist := rng.Float64() * wallR * 0.92
		hx := cx + math.Cos(ang)*dist
		hy := cy + math.Sin(ang)*dist
		sz := 5 + rng.Float64()*7
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#9c6b4e"/>`, hx, hy, sz, sz*0.8)
	}

	// 棚户区: 城墙外的散落屋棚
	if b.Shanty {
		for i := 0; i < houses/4; i++ {
			ang := rng.Float64() * 2 * math.Pi
			dist := wallR * (1.05 + rng.Float64()*0.2)
			fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="4" height="4" fill="#7a6a55"/>`,
				cx+math.Cos(ang)*dist, cy+math.Sin(ang)*dist)
		}
	}

	// 中心广场
	if b.Plaza {
		fmt.Fprintf(&sb, `<circle cx="%.0f" cy="%.0f" r="%.1f" fill="#c4b89a"/>`, cx, cy, view*0.05)
	}
	// 城堡
	if b.Citadel {
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="#6e6256" stroke="#4c443b" stroke-width="3"/>`,
			cx-view*0.06, cy-wallR*0.75, view*0.12, view*0.12)
	}
	// 神庙
	if b.Temple {
		fmt.Fprintf(&sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="#b5aa90" stroke="#827a66" stroke-width="3"/>`,
			cx+wallR*0.5, cy-wallR*0.4, view*0.04)
	}
	// 都城标记
	if b.Capital {
		fmt.Fprintf(&sb, `<circle cx="%.0f" cy="%.0f" r="%.1f" fill="none" stroke="#a4853c" stroke-width="5"/>`, cx, cy, view*0.08)
	}

	sb.WriteString(`</svg>`)

	return &BurgArt{
		SVG:     []byte(sb.String()),
		ViewW:   view,
		ViewH:   view,
		MaxZoom: maxZoom,
	}
}
