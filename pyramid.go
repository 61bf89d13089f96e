package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// PyramidTask 瓦片金字塔渲染任务
// 同一级别内所有瓦片并行无序渲染, 渲染完整个级别再进入下一级,
// 因此任意时刻落盘的级别要么完整要么未开始
type PyramidTask struct {
	ID       string
	World    *World
	SVG      []byte
	OutDir   string
	Min      int
	Max      int
	TileSize int
	Total    int64

	workerCount int
	tileWG      sync.WaitGroup
	abort       chan struct{}
	workers     chan struct{}
}

// NewPyramidTask 创建渲染任务, 渲染前做尺寸预检
func NewPyramidTask(world *World, svgData []byte, outDir string, min, max, tileSize int) (*PyramidTask, error) {
	if err := checkDeclaredDimensions(world.WidthPixels, world.HeightPixels, svgData); err != nil {
		return nil, err
	}
	if tileSize <= 0 {
		tileSize = TileSize
	}
	if min < ZoomMin {
		min = ZoomMin
	}
	if max > ZoomMax {
		max = ZoomMax
	}
	id, _ := shortid.Generate()

	task := &PyramidTask{
		ID:       id,
		World:    world,
		SVG:      svgData,
		OutDir:   outDir,
		Min:      min,
		Max:      max,
		TileSize: tileSize,
	}
	aspect := world.AspectRatio()
	for z := min; z <= max; z++ {
		n := int64(tileCountX(z)) * int64(zoomRows(z, aspect))
		log.Printf("zoom: %d, tiles: %d \n", z, n)
		task.Total += n
	}

	task.workerCount = conf.Task.Workers
	task.abort = make(chan struct{})
	task.workers = make(chan struct{}, task.workerCount)
	return task, nil
}

// zoomRows 方形网格内实际迭代的行数
// 宽图(aspect>1)补透明行到 nx, 高图(aspect<1)迭代到 ny 保证整图可达
func zoomRows(z int, aspect float64) int {
	nx := tileCountX(z)
	ny := tileCountY(z, aspect)
	if ny > nx {
		return ny
	}
	return nx
}

// AbortFun 结束任务
func (task *PyramidTask) AbortFun() {
	close(task.abort)
}

// Render 渲染全部级别并输出清单
func (task *PyramidTask) Render() error {
	if err := os.MkdirAll(task.OutDir, os.ModePerm); err != nil {
		return err
	}
	start := time.Now()
	for z := task.Min; z <= task.Max; z++ {
		if aborted := task.renderZoom(z); aborted {
			log.Infof("Task %s got canceled.", task.ID)
			return nil
		}
	}
	if err := task.writeManifest(); err != nil {
		return err
	}
	log.Printf("\n%.3fs finished...", time.Since(start).Seconds())
	return nil
}

// renderZoom 渲染单个级别, 级别内等待全部 worker 结束
func (task *PyramidTask) renderZoom(z int) (aborted bool) {
	aspect := task.World.AspectRatio()
	nx := tileCountX(z)
	rows := zoomRows(z, aspect)
	count := int64(nx) * int64(rows)

	log.Infof("Task %s zoom %d starting", task.ID, z)
	bar := pb.New64(count).Prefix(fmt.Sprintf("Zoom %d : ", z)).Postfix("\n")
	bar.SetRefreshRate(time.Second)
	bar.Start()

	for x := 0; x < nx; x++ {
		for y := 0; y < rows; y++ {
			mt := maptile.Tile{X: uint32(x), Y: uint32(y), Z: maptile.Zoom(z)}
			if BreakPointInst.IsSuccessed(mt) {
				bar.Increment()
				continue
			}
			select {
			case task.workers <- struct{}{}:
				bar.Increment()
				task.tileWG.Add(1)
				go task.tileRenderer(mt)
			case <-task.abort:
				task.tileWG.Wait()
				bar.Finish()
				return true
			}
		}
	}
	// 等待该层结束
	task.tileWG.Wait()
	bar.FinishPrint(fmt.Sprintf("Task %s Zoom %d finished ~", task.ID, z))
	return false
}

// tileRenderer 单瓦片渲染器
// 比例外的行直接落全透明瓦片, 不进栅格化; 单片失败降级为兜底瓦片
func (task *PyramidTask) tileRenderer(mt maptile.Tile) {
	start := time.Now()
	defer func() {
		task.tileWG.Done()
		<-task.workers
	}()

	aspect := task.World.AspectRatio()
	ny := tileCountY(int(mt.Z), aspect)

	var body []byte
	if int(mt.Y) >= ny {
		body = transparentTile(task.TileSize)
	} else {
		crop := tileCropRect(mt, float64(task.World.WidthPixels), float64(task.World.HeightPixels), aspect)
		rendered, err := rasterizeRegion(task.SVG, crop, task.TileSize)
		if err != nil {
			log.Warnf("render tile %v error, using fallback ~ %s", mt, err)
			body = fallbackTile(task.TileSize)
		} else {
			body = rendered
		}
	}

	td := Tile{T: mt, C: body}
	if err := saveTileFile(task.OutDir, td); err != nil {
		log.Errorf("create %v tile file error ~ %s", td.T, err)
		return
	}
	BreakPointInst.SetSuccessed(mt)

	cost := time.Since(start).Milliseconds()
	log.Debugf("tile(z:%d, x:%d, y:%d), %dms , %.2f kb ...\n", mt.Z, mt.X, mt.Y, cost, float32(len(body))/1024.0)
}

// saveTileFile 按 z/x/y.png 目录树落盘
func saveTileFile(outDir string, tile Tile) error {
	dir := filepath.Join(outDir, fmt.Sprintf(`%d`, tile.T.Z), fmt.Sprintf(`%d`, tile.T.X))
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	fileName := filepath.Join(dir, fmt.Sprintf(`%d.png`, tile.T.Y))
	return os.WriteFile(fileName, tile.C, 0o644)
}

// TilesetManifest 金字塔完成后输出的一次性清单
type TilesetManifest struct {
	World        string  `json:"world"`
	GeneratedAt  string  `json:"generated_at"`
	MinZoom      int     `json:"minzoom"`
	MaxZoom      int     `json:"maxzoom"`
	TileSize     int     `json:"tile_size"`
	WidthPixels  int     `json:"width_pixels"`
	HeightPixels int     `json:"height_pixels"`
	Bounds       Bounds  `json:"bounds"`
	AspectRatio  float64 `json:"aspect_ratio"`
}

func (task *PyramidTask) writeManifest() error {
	m := TilesetManifest{
		World:        task.World.Name,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		MinZoom:      task.Min,
		MaxZoom:      task.Max,
		TileSize:     task.TileSize,
		WidthPixels:  task.World.WidthPixels,
		HeightPixels: task.World.HeightPixels,
		Bounds:       task.World.Bounds,
		AspectRatio:  task.World.AspectRatio(),
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(task.OutDir, "tileset.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	log.Infof("tileset manifest written to %s", path)
	return nil
}

// RunPyramid tiles 模式入口
func RunPyramid() error {
	world, err := store.GetWorldByName(conf.Map.Name)
	if err != nil {
		return err
	}
	svgPath := conf.Map.SVG
	if svgPath == "" {
		svgPath = filepath.Join(conf.Map.Dir, conf.Map.Name+".svg")
	}
	svgData, err := os.ReadFile(svgPath)
	if err != nil {
		return err
	}

	outDir := filepath.Join(conf.Output.Directory, world.Name)
	task, err := NewPyramidTask(world, svgData, outDir, conf.Map.Min, conf.Map.Max, conf.Map.TileSize)
	if err != nil {
		return err
	}
	SafeExitInst.Register(task.AbortFun)
	return task.Render()
}
