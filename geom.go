package main

import (
	"encoding/json"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// loadFeatureCollection 读取并解析一份 GeoJSON 要素集
func loadFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// toMultiPolygon Polygon 归一为单成员 MultiPolygon, 其余形状拒绝
func toMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	case orb.MultiPolygon:
		return v, nil
	default:
		return nil, validationErr("geometry", "expected Polygon or MultiPolygon, got "+g.GeoJSONType())
	}
}

// toMultiLineString LineString 归一为 MultiLineString
func toMultiLineString(g orb.Geometry) (orb.MultiLineString, error) {
	switch v := g.(type) {
	case orb.LineString:
		return orb.MultiLineString{v}, nil
	case orb.MultiLineString:
		return v, nil
	default:
		return nil, validationErr("geometry", "expected LineString or MultiLineString, got "+g.GeoJSONType())
	}
}

// representativePoint 点要素直接取点, 面/线取形心
func representativePoint(g orb.Geometry) (orb.Point, error) {
	switch v := g.(type) {
	case orb.Point:
		return v, nil
	case nil:
		return orb.Point{}, validationErr("geometry", "missing geometry")
	default:
		c, _ := planar.CentroidArea(g)
		return c, nil
	}
}

// marshalGeometry 几何序列化为 GeoJSON 文本入库
func marshalGeometry(g orb.Geometry) (string, error) {
	b, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalGeometry(s string) (orb.Geometry, error) {
	var g geojson.Geometry
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return nil, err
	}
	return g.Geometry(), nil
}

// geomBBox 预计算外接矩形, 供相交查询命中索引
func geomBBox(g orb.Geometry) (minx, miny, maxx, maxy float64) {
	b := g.Bound()
	return b.Min[0], b.Min[1], b.Max[0], b.Max[1]
}
