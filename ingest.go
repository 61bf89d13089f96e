package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/paulmach/orb/geojson"
)

// 图层类型, 与导出文件后缀一致
const (
	LayerCells   = "cells"
	LayerBurgs   = "burgs"
	LayerRoutes  = "routes"
	LayerRivers  = "rivers"
	LayerMarkers = "markers"
)

var layerOrder = []string{LayerCells, LayerBurgs, LayerRoutes, LayerRivers, LayerMarkers}

func isValidLayer(layer string) bool {
	for _, l := range layerOrder {
		if l == layer {
			return true
		}
	}
	return false
}

// propAliases 属性别名表: 规范名 -> 历史拼写
// 地图生成器各版本导出的属性大小写不一, 解码时按序查找
var propAliases = map[string][]string{
	"stateFull":           {"statefull", "state_full", "StateFull"},
	"provinceFull":        {"provincefull", "province_full", "ProvinceFull"},
	"populationRaw":       {"populationraw", "population_raw", "PopulationRaw"},
	"temperatureLikeness": {"temperaturelikeness", "temperature_likeness"},
	"xWorld":              {"xworld", "x_world"},
	"yWorld":              {"yworld", "y_world"},
	"xPixel":              {"xpixel", "x_pixel"},
	"yPixel":              {"ypixel", "y_pixel"},
	"x_px":                {"xPx", "xpx"},
	"y_px":                {"yPx", "ypx"},
}

type featProps map[string]interface{}

func (p featProps) lookup(name string) (interface{}, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	for _, alias := range propAliases[name] {
		if v, ok := p[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// scrubString 清除孤立 UTF-16 代理区码元与非法字节, 对应导出数据中的脏字符
func scrubString(s string) string {
	return strings.Map(func(r rune) rune {
		if utf16.IsSurrogate(r) || r == '�' {
			return -1
		}
		return r
	}, s)
}

// decodeInt required 为真时缺失即报错; 存在但不可解析一律报错, 整层回滚
func (p featProps) decodeInt(name string, required bool, def int) (int, error) {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required property")
		}
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if ferr != nil {
				return 0, fmt.Errorf("not an integer: %q", n)
			}
			return int(f), nil
		}
		return i, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}

// decodeFloat 可选浮点, 缺失或不可解析为 NULL
func (p featProps) decodeFloat(name string) sql.NullFloat64 {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return sql.NullFloat64{}
	}
	switch n := v.(type) {
	case float64:
		return sql.NullFloat64{Float64: n, Valid: true}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return sql.NullFloat64{Float64: f, Valid: true}
		}
	}
	return sql.NullFloat64{}
}

// decodeFloatDefault 带默认值的浮点
func (p featProps) decodeFloatDefault(name string, def float64) float64 {
	if f := p.decodeFloat(name); f.Valid {
		return f.Float64
	}
	return def
}

func (p featProps) decodeString(name string) string {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return scrubString(s)
	default:
		return scrubString(fmt.Sprint(v))
	}
}

// decodeBool 按真值性转换: 非零数值视为真, 字符串只要非空就为真
func (p featProps) decodeBool(name string) bool {
	v, ok := p.lookup(name)
	if !ok || v == nil {
		return false
	}
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case string:
		return b != ""
	default:
		return false
	}
}

// IngestLayer 单层批量合并写入: 一层一事务, 以 (world_id, <layer>_id) 合并冲突
// 同一导出重复导入是幂等的: 无重复行, 属性按最新值覆盖
func (s *Store) IngestLayer(ctx context.Context, worldID, layer string, fc *geojson.FeatureCollection) (int, error) {
	if !isValidLayer(layer) {
		return 0, validationErr("layer_type", "unknown layer: "+layer)
	}
	if fc == nil || len(fc.Features) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var rows int
	switch layer {
	case LayerCells:
		rows, err = ingestCells(tx, worldID, fc)
	case LayerBurgs:
		rows, err = ingestBurgs(tx, worldID, fc)
	case LayerRoutes:
		rows, err = ingestRoutes(tx, worldID, fc)
	case LayerRivers:
		rows, err = ingestRivers(tx, worldID, fc)
	case LayerMarkers:
		rows, err = ingestMarkers(tx, worldID, fc)
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	log.Infof("layer %s: %d features ingested", layer, rows)
	return rows, nil
}

func txErr(layer, field string, err error) error {
	return &TransactionError{Layer: layer, Field: field, Err: err}
}

func ingestCells(tx *sql.Tx, worldID string, fc *geojson.FeatureCollection) (int, error) {
	stmt, err := tx.Prepare(`INSERT INTO maps_cells
		(world_id, cell_id, biome, type, population, state, culture, religion, height, geom, minx, miny, maxx, maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, cell_id) DO UPDATE SET
			biome=excluded.biome, type=excluded.type, population=excluded.population,
			state=excluded.state, culture=excluded.culture, religion=excluded.religion,
			height=excluded.height, geom=excluded.geom,
			minx=excluded.minx, miny=excluded.miny, maxx=excluded.maxx, maxy=excluded.maxy`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rows := 0
	for _, f := range fc.Features {
		p := featProps(f.Properties)
		id, err := p.decodeInt("id", true, 0)
		if err != nil {
			return 0, txErr(LayerCells, "id", err)
		}
		biome, err := p.decodeInt("biome", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "biome", err)
		}
		population, err := p.decodeInt("population", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "population", err)
		}
		state, err := p.decodeInt("state", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "state", err)
		}
		culture, err := p.decodeInt("culture", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "culture", err)
		}
		religion, err := p.decodeInt("religion", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "religion", err)
		}
		height, err := p.decodeInt("height", false, 0)
		if err != nil {
			return 0, txErr(LayerCells, "height", err)
		}
		mp, err := toMultiPolygon(f.Geometry)
		if err != nil {
			return 0, txErr(LayerCells, "geometry", err)
		}
		geomJSON, err := marshalGeometry(mp)
		if err != nil {
			return 0, txErr(LayerCells, "geometry", err)
		}
		minx, miny, maxx, maxy := geomBBox(mp)
		if _, err := stmt.Exec(worldID, id, biome, p.decodeString("type"), population,
			state, culture, religion, height, geomJSON, minx, miny, maxx, maxy); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

func ingestBurgs(tx *sql.Tx, worldID string, fc *geojson.FeatureCollection) (int, error) {
	stmt, err := tx.Prepare(`INSERT INTO maps_burgs
		(world_id, burg_id, name, state, statefull, province, provincefull, culture, religion,
		 population, populationraw, elevation, temperature, temperaturelikeness,
		 capital, port, citadel, walls, plaza, temple, shanty,
		 xworld, yworld, xpixel, ypixel, cell, emblem, geom, minx, miny, maxx, maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, burg_id) DO UPDATE SET
			name=excluded.name, state=excluded.state, statefull=excluded.statefull,
			province=excluded.province, provincefull=excluded.provincefull,
			culture=excluded.culture, religion=excluded.religion,
			population=excluded.population, populationraw=excluded.populationraw,
			elevation=excluded.elevation, temperature=excluded.temperature,
			temperaturelikeness=excluded.temperaturelikeness,
			capital=excluded.capital, port=excluded.port, citadel=excluded.citadel,
			walls=excluded.walls, plaza=excluded.plaza, temple=excluded.temple, shanty=excluded.shanty,
			xworld=excluded.xworld, yworld=excluded.yworld, xpixel=excluded.xpixel, ypixel=excluded.ypixel,
			cell=excluded.cell, emblem=excluded.emblem, geom=excluded.geom,
			minx=excluded.minx, miny=excluded.miny, maxx=excluded.maxx, maxy=excluded.maxy`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rows := 0
	for _, f := range fc.Features {
		p := featProps(f.Properties)
		id, err := p.decodeInt("id", true, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "id", err)
		}
		population, err := p.decodeInt("population", false, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "population", err)
		}
		elevation, err := p.decodeInt("elevation", false, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "elevation", err)
		}
		xWorld, err := p.decodeInt("xWorld", false, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "xWorld", err)
		}
		yWorld, err := p.decodeInt("yWorld", false, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "yWorld", err)
		}
		cell, err := p.decodeInt("cell", false, 0)
		if err != nil {
			return 0, txErr(LayerBurgs, "cell", err)
		}

		pt, err := representativePoint(f.Geometry)
		if err != nil {
			return 0, txErr(LayerBurgs, "geometry", err)
		}
		geomJSON, err := marshalGeometry(pt)
		if err != nil {
			return 0, txErr(LayerBurgs, "geometry", err)
		}
		minx, miny, maxx, maxy := geomBBox(pt)

		var emblem sql.NullString
		if v, ok := p.lookup("emblem"); ok && v != nil {
			if b, err := json.Marshal(v); err == nil {
				emblem = sql.NullString{String: string(b), Valid: true}
			}
		}

		if _, err := stmt.Exec(worldID, id,
			p.decodeString("name"), p.decodeString("state"), p.decodeString("stateFull"),
			p.decodeString("province"), p.decodeString("provinceFull"),
			p.decodeString("culture"), p.decodeString("religion"),
			population, p.decodeFloatDefault("populationRaw", 0), elevation,
			p.decodeString("temperature"), p.decodeString("temperatureLikeness"),
			p.decodeBool("capital"), p.decodeBool("port"), p.decodeBool("citadel"),
			p.decodeBool("walls"), p.decodeBool("plaza"), p.decodeBool("temple"), p.decodeBool("shanty"),
			xWorld, yWorld, p.decodeFloatDefault("xPixel", 0), p.decodeFloatDefault("yPixel", 0),
			cell, emblem, geomJSON, minx, miny, maxx, maxy); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

func ingestRoutes(tx *sql.Tx, worldID string, fc *geojson.FeatureCollection) (int, error) {
	stmt, err := tx.Prepare(`INSERT INTO maps_routes
		(world_id, route_id, name, type, feature, geom, minx, miny, maxx, maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, route_id) DO UPDATE SET
			name=excluded.name, type=excluded.type, feature=excluded.feature, geom=excluded.geom,
			minx=excluded.minx, miny=excluded.miny, maxx=excluded.maxx, maxy=excluded.maxy`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rows := 0
	for _, f := range fc.Features {
		p := featProps(f.Properties)
		id, err := p.decodeInt("id", true, 0)
		if err != nil {
			return 0, txErr(LayerRoutes, "id", err)
		}
		feature, err := p.decodeInt("feature", false, 0)
		if err != nil {
			return 0, txErr(LayerRoutes, "feature", err)
		}
		ml, err := toMultiLineString(f.Geometry)
		if err != nil {
			return 0, txErr(LayerRoutes, "geometry", err)
		}
		geomJSON, err := marshalGeometry(ml)
		if err != nil {
			return 0, txErr(LayerRoutes, "geometry", err)
		}
		minx, miny, maxx, maxy := geomBBox(ml)
		if _, err := stmt.Exec(worldID, id, p.decodeString("name"), p.decodeString("type"),
			feature, geomJSON, minx, miny, maxx, maxy); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

func ingestRivers(tx *sql.Tx, worldID string, fc *geojson.FeatureCollection) (int, error) {
	stmt, err := tx.Prepare(`INSERT INTO maps_rivers
		(world_id, river_id, name, type, discharge, length, width, geom, minx, miny, maxx, maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, river_id) DO UPDATE SET
			name=excluded.name, type=excluded.type, discharge=excluded.discharge,
			length=excluded.length, width=excluded.width, geom=excluded.geom,
			minx=excluded.minx, miny=excluded.miny, maxx=excluded.maxx, maxy=excluded.maxy`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rows := 0
	for _, f := range fc.Features {
		p := featProps(f.Properties)
		id, err := p.decodeInt("id", true, 0)
		if err != nil {
			return 0, txErr(LayerRivers, "id", err)
		}
		ml, err := toMultiLineString(f.Geometry)
		if err != nil {
			return 0, txErr(LayerRivers, "geometry", err)
		}
		geomJSON, err := marshalGeometry(ml)
		if err != nil {
			return 0, txErr(LayerRivers, "geometry", err)
		}
		minx, miny, maxx, maxy := geomBBox(ml)
		if _, err := stmt.Exec(worldID, id, p.decodeString("name"), p.decodeString("type"),
			p.decodeFloat("discharge"), p.decodeFloat("length"), p.decodeFloat("width"),
			geomJSON, minx, miny, maxx, maxy); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

func ingestMarkers(tx *sql.Tx, worldID string, fc *geojson.FeatureCollection) (int, error) {
	stmt, err := tx.Prepare(`INSERT INTO maps_markers
		(world_id, marker_id, type, icon, x_px, y_px, note, geom, minx, miny, maxx, maxy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (world_id, marker_id) DO UPDATE SET
			type=excluded.type, icon=excluded.icon, x_px=excluded.x_px, y_px=excluded.y_px,
			note=excluded.note, geom=excluded.geom,
			minx=excluded.minx, miny=excluded.miny, maxx=excluded.maxx, maxy=excluded.maxy`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	rows := 0
	for _, f := range fc.Features {
		p := featProps(f.Properties)
		id, err := p.decodeInt("id", true, 0)
		if err != nil {
			return 0, txErr(LayerMarkers, "id", err)
		}
		pt, err := representativePoint(f.Geometry)
		if err != nil {
			return 0, txErr(LayerMarkers, "geometry", err)
		}
		geomJSON, err := marshalGeometry(pt)
		if err != nil {
			return 0, txErr(LayerMarkers, "geometry", err)
		}
		minx, miny, maxx, maxy := geomBBox(pt)
		if _, err := stmt.Exec(worldID, id, p.decodeString("type"), p.decodeString("icon"),
			p.decodeFloat("x_px"), p.decodeFloat("y_px"), p.decodeString("note"),
			geomJSON, minx, miny, maxx, maxy); err != nil {
			return 0, err
		}
		rows++
	}
	return rows, nil
}

var layerTables = map[string]string{
	LayerCells:   "maps_cells",
	LayerBurgs:   "maps_burgs",
	LayerRoutes:  "maps_routes",
	LayerRivers:  "maps_rivers",
	LayerMarkers: "maps_markers",
}

// GetIngestionStatus 各层已入库行数
func (s *Store) GetIngestionStatus(worldID string) (map[string]int, error) {
	status := make(map[string]int, len(layerTables))
	for _, layer := range layerOrder {
		var n int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM `+layerTables[layer]+` WHERE world_id = ?`, worldID).Scan(&n)
		if err != nil {
			return nil, err
		}
		status[layer] = n
	}
	return status, nil
}

// findWorldFiles 按 <world>_<layer>.geojson 命名约定发现各层文件
func findWorldFiles(world, dir string) map[string]string {
	files := make(map[string]string)
	for _, layer := range layerOrder {
		p := filepath.Join(dir, fmt.Sprintf("%s_%s.geojson", world, layer))
		if _, err := os.Stat(p); err == nil {
			files[layer] = p
			log.Infof("found %s file: %s", layer, p)
		} else {
			log.Warnf("missing %s file: %s", layer, p)
		}
	}
	return files
}

// RunImport import 模式入口: 构建元数据, 建世界, 逐层入库
func RunImport(ctx context.Context) error {
	world := conf.Map.Name
	if world == "" {
		return validationErr("world", "map.name not configured")
	}
	files := findWorldFiles(world, conf.Map.Dir)
	if len(files) == 0 {
		return fmt.Errorf("no geojson files found for world %q in %s", world, conf.Map.Dir)
	}

	svgPath := conf.Map.SVG
	if svgPath == "" {
		svgPath = filepath.Join(conf.Map.Dir, world+".svg")
	}
	meta, err := buildMapMetadata(world, svgPath, files)
	if err != nil {
		return err
	}
	log.Infof("canonical map metadata: %dpx x %dpx @ %gm/px",
		meta.WidthPixels, meta.HeightPixels, meta.MetersPerPixel)
	if _, err := writeMetadataFile(meta); err != nil {
		return err
	}

	worldID, err := store.CreateOrUpdateWorld(world, "Imported world map: "+world,
		meta.WidthPixels, meta.HeightPixels, meta.MetersPerPixel, "")
	if err != nil {
		return err
	}

	total := 0
	for _, layer := range layerOrder {
		path, ok := files[layer]
		if !ok {
			continue
		}
		fc, err := loadFeatureCollection(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rows, err := store.IngestLayer(ctx, worldID, layer, fc)
		if err != nil {
			return fmt.Errorf("import %s: %w", layer, err)
		}
		total += rows
	}
	status, err := store.GetIngestionStatus(worldID)
	if err != nil {
		return err
	}
	log.Infof("world %q imported, %d total features (%s)", world, total, statusSummary(status))
	return nil
}
