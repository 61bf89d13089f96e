package main

import (
	"database/sql"

	_ "github.com/shaxbee/go-spatialite"
)

var store *Store

// Store 空间库访问入口, 基于 spatialite 单文件库
// 依赖能力: 冲突合并写入(upsert)、外接矩形相交查询, 不绑定具体产品
type Store struct {
	db *sql.DB
}

func InitStore() {
	st, err := OpenStore(conf.Store.Path)
	if err != nil {
		log.Fatalf("open store(%s) error: %v", conf.Store.Path, err)
	}
	store = st
	SafeExitInst.Register(func() {
		store.Close()
		log.Infof("空间库已关闭")
	})
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("spatialite", path)
	if err != nil {
		return nil, err
	}
	st := &Store{db: db}
	if err := st.EnsureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema 建表, 幂等
// geom 统一存 GeoJSON 文本, minx/miny/maxx/maxy 为预计算外接矩形, 供范围查询
func (s *Store) EnsureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS maps_world (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			bounds TEXT NOT NULL,
			width_pixels INTEGER NOT NULL,
			height_pixels INTEGER NOT NULL,
			meters_per_pixel REAL NOT NULL,
			uploaded_by TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS maps_cells (
			world_id TEXT NOT NULL,
			cell_id INTEGER NOT NULL,
			biome INTEGER NOT NULL,
			type TEXT,
			population INTEGER NOT NULL,
			state INTEGER NOT NULL,
			culture INTEGER NOT NULL,
			religion INTEGER NOT NULL,
			height INTEGER NOT NULL,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			PRIMARY KEY (world_id, cell_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maps_burgs (
			world_id TEXT NOT NULL,
			burg_id INTEGER NOT NULL,
			name TEXT,
			state TEXT,
			statefull TEXT,
			province TEXT,
			provincefull TEXT,
			culture TEXT,
			religion TEXT,
			population INTEGER NOT NULL,
			populationraw REAL NOT NULL,
			elevation INTEGER NOT NULL,
			temperature TEXT,
			temperaturelikeness TEXT,
			capital INTEGER NOT NULL,
			port INTEGER NOT NULL,
			citadel INTEGER NOT NULL,
			walls INTEGER NOT NULL,
			plaza INTEGER NOT NULL,
			temple INTEGER NOT NULL,
			shanty INTEGER NOT NULL,
			xworld INTEGER NOT NULL,
			yworld INTEGER NOT NULL,
			xpixel REAL NOT NULL,
			ypixel REAL NOT NULL,
			cell INTEGER NOT NULL,
			emblem TEXT,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			PRIMARY KEY (world_id, burg_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maps_routes (
			world_id TEXT NOT NULL,
			route_id INTEGER NOT NULL,
			name TEXT,
			type TEXT,
			feature INTEGER NOT NULL,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			PRIMARY KEY (world_id, route_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maps_rivers (
			world_id TEXT NOT NULL,
			river_id INTEGER NOT NULL,
			name TEXT,
			type TEXT,
			discharge REAL,
			length REAL,
			width REAL,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			PRIMARY KEY (world_id, river_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maps_markers (
			world_id TEXT NOT NULL,
			marker_id INTEGER NOT NULL,
			type TEXT,
			icon TEXT,
			x_px REAL,
			y_px REAL,
			note TEXT,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			PRIMARY KEY (world_id, marker_id)
		)`,
		`CREATE TABLE IF NOT EXISTS maps_regions (
			id TEXT PRIMARY KEY,
			campaign_id TEXT NOT NULL,
			world_map_id TEXT,
			name TEXT NOT NULL,
			category TEXT NOT NULL,
			color TEXT NOT NULL,
			metadata TEXT NOT NULL,
			geom TEXT NOT NULL,
			minx REAL NOT NULL, miny REAL NOT NULL, maxx REAL NOT NULL, maxy REAL NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cells_bbox ON maps_cells (world_id, minx, maxx)`,
		`CREATE INDEX IF NOT EXISTS idx_burgs_name ON maps_burgs (world_id, name)`,
		`CREATE INDEX IF NOT EXISTS idx_regions_campaign ON maps_regions (campaign_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
