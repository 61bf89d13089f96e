package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// BBox 查询用外接矩形, 世界平面坐标
type BBox struct {
	MinX, MinY, MaxX, MaxY float64
}

// parseBBox 解析 "minx,miny,maxx,maxy"
func parseBBox(s string) (*BBox, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, validationErr("bbox", "expected minx,miny,maxx,maxy")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, validationErr("bbox", "not a number: "+p)
		}
		vals[i] = f
	}
	b := &BBox{MinX: vals[0], MinY: vals[1], MaxX: vals[2], MaxY: vals[3]}
	if b.MinX > b.MaxX || b.MinY > b.MaxY {
		return nil, validationErr("bbox", "min must not exceed max")
	}
	return b, nil
}

// 各层查询列: id 列 + 属性列, geom 单独取
var layerQueryCols = map[string]struct {
	idCol string
	props []string
}{
	LayerCells:   {"cell_id", []string{"biome", "type", "population", "state", "culture", "religion", "height"}},
	LayerBurgs:   {"burg_id", []string{"name", "state", "culture", "religion", "population", "elevation", "capital", "port", "citadel", "walls", "plaza", "temple", "shanty"}},
	LayerRoutes:  {"route_id", []string{"name", "type", "feature"}},
	LayerRivers:  {"river_id", []string{"name", "type", "discharge", "length", "width"}},
	LayerMarkers: {"marker_id", []string{"type", "icon", "x_px", "y_px", "note"}},
}

// QueryLayer 单层外接矩形相交查询, 输出 GeoJSON 要素
// cells 是基数最高的层, 必须带范围, 禁止全表扫描
func (s *Store) QueryLayer(worldID, layer string, bbox *BBox) ([]*geojson.Feature, error) {
	cols, ok := layerQueryCols[layer]
	if !ok {
		return nil, validationErr("layer_type", "unknown layer: "+layer)
	}
	if layer == LayerCells && bbox == nil {
		return nil, validationErr("bbox", "cell queries require bounds")
	}

	sb := strings.Builder{}
	sb.WriteString("SELECT ")
	sb.WriteString(cols.idCol)
	sb.WriteString(", geom, ")
	sb.WriteString(strings.Join(cols.props, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(layerTables[layer])
	sb.WriteString(" WHERE world_id = ?")
	args := []interface{}{worldID}
	if bbox != nil {
		sb.WriteString(" AND maxx >= ? AND minx <= ? AND maxy >= ? AND miny <= ?")
		args = append(args, bbox.MinX, bbox.MaxX, bbox.MinY, bbox.MaxY)
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(cols.idCol)

	rows, err := s.db.Query(sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	features := make([]*geojson.Feature, 0)
	scan := make([]interface{}, 2+len(cols.props))
	for i := range scan {
		scan[i] = new(interface{})
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, err
		}
		geomJSON, _ := (*scan[1].(*interface{})).(string)
		g, err := unmarshalGeometry(geomJSON)
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(g)
		f.ID = *scan[0].(*interface{})
		f.Properties = geojson.Properties{"id": f.ID}
		for i, name := range cols.props {
			f.Properties[name] = *scan[2+i].(*interface{})
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

// escapeLike 转义检索词中的 LIKE 通配符, 使其按字面匹配
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// clampLimit 检索结果数夹取到 [1,50]
func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return n
}

// BurgSearchHit 名称检索命中
type BurgSearchHit struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Population int    `json:"population"`
	Capital    bool   `json:"capital"`
}

// SearchBurgs 名称不区分大小写子串检索, 人口降序再按名称升序
func (s *Store) SearchBurgs(worldID, term string, limit int) ([]BurgSearchHit, error) {
	if strings.TrimSpace(term) == "" {
		return nil, validationErr("q", "search term is required")
	}
	pattern := "%" + escapeLike(term) + "%"
	rows, err := s.db.Query(`SELECT burg_id, COALESCE(name, ''), population, capital
		FROM maps_burgs
		WHERE world_id = ? AND LOWER(name) LIKE LOWER(?) ESCAPE '\'
		ORDER BY population DESC, name ASC
		LIMIT ?`, worldID, pattern, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]BurgSearchHit, 0)
	for rows.Next() {
		var h BurgSearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Population, &h.Capital); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// statusSummary 导入状态的可读输出
func statusSummary(status map[string]int) string {
	parts := make([]string, 0, len(layerOrder))
	for _, layer := range layerOrder {
		parts = append(parts, fmt.Sprintf("%s=%d", layer, status[layer]))
	}
	return strings.Join(parts, " ")
}
