package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// 区域分类枚举
var regionCategories = map[string]struct{}{
	"encounter": {},
	"rumour":    {},
	"narrative": {},
	"travel":    {},
	"custom":    {},
}

var colorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// Region 战役作者在世界图上手绘的多边形标注
// 几何一律以 MultiPolygon 存储
type Region struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id"`
	WorldMapID string            `json:"world_map_id,omitempty"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Color      string            `json:"color"`
	Metadata   json.RawMessage   `json:"metadata"`
	Geometry   *geojson.Geometry `json:"geometry"`
	CreatedAt  string            `json:"created_at"`
	UpdatedAt  string            `json:"updated_at"`
}

// RegionCreate 创建请求
type RegionCreate struct {
	CampaignID string            `json:"campaign_id"`
	WorldMapID string            `json:"world_map_id"`
	Name       string            `json:"name"`
	Category   string            `json:"category"`
	Color      string            `json:"color"`
	Metadata   json.RawMessage   `json:"metadata"`
	Geometry   *geojson.Geometry `json:"geometry"`
}

// RegionUpdate 局部更新请求, 只触碰请求里出现的字段
type RegionUpdate struct {
	Name     *string           `json:"name"`
	Category *string           `json:"category"`
	Color    *string           `json:"color"`
	Metadata json.RawMessage   `json:"metadata"`
	Geometry *geojson.Geometry `json:"geometry"`
}

func validateCategory(c string) error {
	if _, ok := regionCategories[c]; !ok {
		return validationErr("category", "unknown category: "+c)
	}
	return nil
}

// normalizeColor 校验 6 位十六进制并统一为 #rrggbb 小写
func normalizeColor(c string) (string, error) {
	if !colorPattern.MatchString(c) {
		return "", validationErr("color", "expected 6 hex digits, got "+c)
	}
	return "#" + strings.ToLower(strings.TrimPrefix(c, "#")), nil
}

// normalizeMetadata 元数据接受 JSON 对象或含对象的 JSON 字符串, 归一为规范 JSON
func normalizeMetadata(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "{}", nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		b, err := json.Marshal(obj)
		if err != nil {
			return "", validationErr("metadata", err.Error())
		}
		return string(b), nil
	}
	// 字符串形式: 先解开引号再按对象解析
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			b, err := json.Marshal(obj)
			if err != nil {
				return "", validationErr("metadata", err.Error())
			}
			return string(b), nil
		}
	}
	return "", validationErr("metadata", "expected a JSON object")
}

// normalizeRegionGeometry 仅接受 Polygon/MultiPolygon, Polygon 归一为单成员 MultiPolygon
func normalizeRegionGeometry(g *geojson.Geometry) (orb.MultiPolygon, error) {
	if g == nil {
		return nil, validationErr("geometry", "geometry is required")
	}
	return toMultiPolygon(g.Geometry())
}

// CreateRegion 校验并写入区域
func (s *Store) CreateRegion(req *RegionCreate) (*Region, error) {
	if req.CampaignID == "" {
		return nil, validationErr("campaign_id", "required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationErr("name", "required")
	}
	if err := validateCategory(req.Category); err != nil {
		return nil, err
	}
	color, err := normalizeColor(req.Color)
	if err != nil {
		return nil, err
	}
	meta, err := normalizeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}
	mp, err := normalizeRegionGeometry(req.Geometry)
	if err != nil {
		return nil, err
	}
	geomJSON, err := marshalGeometry(mp)
	if err != nil {
		return nil, err
	}
	minx, miny, maxx, maxy := geomBBox(mp)

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	var worldMapID sql.NullString
	if req.WorldMapID != "" {
		worldMapID = sql.NullString{String: req.WorldMapID, Valid: true}
	}
	_, err = s.db.Exec(`INSERT INTO maps_regions
		(id, campaign_id, world_map_id, name, category, color, metadata, geom, minx, miny, maxx, maxy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.CampaignID, worldMapID, req.Name, req.Category, color, meta, geomJSON,
		minx, miny, maxx, maxy, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetRegion(id)
}

const regionCols = `id, campaign_id, world_map_id, name, category, color, metadata, geom, created_at, updated_at`

func scanRegion(scan func(dest ...interface{}) error, id string) (*Region, error) {
	var r Region
	var worldMapID sql.NullString
	var meta, geom string
	err := scan(&r.ID, &r.CampaignID, &worldMapID, &r.Name, &r.Category, &r.Color,
		&meta, &geom, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("region", id)
	}
	if err != nil {
		return nil, err
	}
	r.WorldMapID = worldMapID.String
	r.Metadata = json.RawMessage(meta)
	g, err := unmarshalGeometry(geom)
	if err != nil {
		return nil, err
	}
	r.Geometry = geojson.NewGeometry(g)
	return &r, nil
}

func (s *Store) GetRegion(id string) (*Region, error) {
	row := s.db.QueryRow(`SELECT `+regionCols+` FROM maps_regions WHERE id = ?`, id)
	return scanRegion(row.Scan, id)
}

func (s *Store) ListRegions(campaignID string) ([]*Region, error) {
	rows, err := s.db.Query(`SELECT `+regionCols+` FROM maps_regions WHERE campaign_id = ? ORDER BY created_at`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	regions := make([]*Region, 0)
	for rows.Next() {
		r, err := scanRegion(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

// UpdateRegion 局部更新; 一个可更新字段都没有时按校验失败处理
func (s *Store) UpdateRegion(id string, req *RegionUpdate) (*Region, error) {
	sets := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, validationErr("name", "must not be empty")
		}
		sets = append(sets, "name = ?")
		args = append(args, *req.Name)
	}
	if req.Category != nil {
		if err := validateCategory(*req.Category); err != nil {
			return nil, err
		}
		sets = append(sets, "category = ?")
		args = append(args, *req.Category)
	}
	if req.Color != nil {
		color, err := normalizeColor(*req.Color)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "color = ?")
		args = append(args, color)
	}
	if len(req.Metadata) > 0 {
		meta, err := normalizeMetadata(req.Metadata)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "metadata = ?")
		args = append(args, meta)
	}
	if req.Geometry != nil {
		mp, err := normalizeRegionGeometry(req.Geometry)
		if err != nil {
			return nil, err
		}
		geomJSON, err := marshalGeometry(mp)
		if err != nil {
			return nil, err
		}
		minx, miny, maxx, maxy := geomBBox(mp)
		sets = append(sets, "geom = ?", "minx = ?", "miny = ?", "maxx = ?", "maxy = ?")
		args = append(args, geomJSON, minx, miny, maxx, maxy)
	}
	if len(sets) == 0 {
		return nil, validationErr("update", "no updatable fields in request")
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)
	res, err := s.db.Exec(`UPDATE maps_regions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, notFoundErr("region", id)
	}
	return s.GetRegion(id)
}

func (s *Store) DeleteRegion(id string) error {
	res, err := s.db.Exec(`DELETE FROM maps_regions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr("region", id)
	}
	return nil
}
