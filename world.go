package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Bounds 世界边界, 由像素尺寸与比例尺推导, 并非地理坐标
// 左上角为原点: north=0, south 为负
type Bounds struct {
	North          float64 `json:"north"`
	South          float64 `json:"south"`
	East           float64 `json:"east"`
	West           float64 `json:"west"`
	WidthPixels    int     `json:"width_pixels"`
	HeightPixels   int     `json:"height_pixels"`
	MetersPerPixel float64 `json:"meters_per_pixel"`
}

func computeBounds(widthPx, heightPx int, mpp float64) Bounds {
	return Bounds{
		North:          0,
		South:          -float64(heightPx) * mpp,
		East:           float64(widthPx) * mpp,
		West:           0,
		WidthPixels:    widthPx,
		HeightPixels:   heightPx,
		MetersPerPixel: mpp,
	}
}

// World 一次地图导出对应的命名平面坐标空间
type World struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Bounds         Bounds  `json:"bounds"`
	WidthPixels    int     `json:"width_pixels"`
	HeightPixels   int     `json:"height_pixels"`
	MetersPerPixel float64 `json:"meters_per_pixel"`
	UploadedBy     string  `json:"uploaded_by,omitempty"`
	IsActive       bool    `json:"is_active"`
}

// AspectRatio 宽高比, 瓦片网格的唯一真值来源
func (w *World) AspectRatio() float64 {
	return float64(w.WidthPixels) / float64(w.HeightPixels)
}

// CreateOrUpdateWorld 按名称查找并更新, 不存在则插入
// 比例尺只影响 bounds 标注, 不变换已存几何
func (s *Store) CreateOrUpdateWorld(name, description string, widthPx, heightPx int, mpp float64, uploadedBy string) (string, error) {
	if name == "" {
		return "", validationErr("name", "world name is required")
	}
	if widthPx <= 0 || heightPx <= 0 {
		return "", validationErr("dimensions", "width/height must be positive")
	}
	if mpp <= 0 {
		mpp = 1
	}
	bounds := computeBounds(widthPx, heightPx, mpp)
	bj, _ := json.Marshal(bounds)
	now := time.Now().UTC().Format(time.RFC3339)

	var id string
	err := s.db.QueryRow(`SELECT id FROM maps_world WHERE name = ?`, name).Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.Exec(`UPDATE maps_world
			SET description = ?, bounds = ?, width_pixels = ?, height_pixels = ?,
			    meters_per_pixel = ?, uploaded_by = ?, updated_at = ?
			WHERE id = ?`,
			description, string(bj), widthPx, heightPx, mpp, uploadedBy, now, id)
		if err != nil {
			return "", err
		}
		log.Infof("updated existing world %q (%s)", name, id)
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		_, err = s.db.Exec(`INSERT INTO maps_world
			(id, name, description, bounds, width_pixels, height_pixels, meters_per_pixel, uploaded_by, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			id, name, description, string(bj), widthPx, heightPx, mpp, uploadedBy, now, now)
		if err != nil {
			return "", err
		}
		log.Infof("created new world %q (%s)", name, id)
		return id, nil
	default:
		return "", err
	}
}

// UpdateWorldScale 仅凭库中像素尺寸重算 bounds
func (s *Store) UpdateWorldScale(worldID string, mpp float64) error {
	if mpp <= 0 {
		return validationErr("meters_per_pixel", "must be positive")
	}
	var widthPx, heightPx int
	err := s.db.QueryRow(`SELECT width_pixels, height_pixels FROM maps_world WHERE id = ?`, worldID).
		Scan(&widthPx, &heightPx)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr("world", worldID)
	}
	if err != nil {
		return err
	}
	bounds := computeBounds(widthPx, heightPx, mpp)
	bj, _ := json.Marshal(bounds)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.Exec(`UPDATE maps_world SET bounds = ?, meters_per_pixel = ?, updated_at = ? WHERE id = ?`,
		string(bj), mpp, now, worldID)
	return err
}

func (s *Store) scanWorld(row *sql.Row, key string) (*World, error) {
	var w World
	var boundsJSON string
	var active int
	var uploadedBy sql.NullString
	err := row.Scan(&w.ID, &w.Name, &w.Description, &boundsJSON,
		&w.WidthPixels, &w.HeightPixels, &w.MetersPerPixel, &uploadedBy, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundErr("world", key)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(boundsJSON), &w.Bounds); err != nil {
		return nil, err
	}
	w.UploadedBy = uploadedBy.String
	w.IsActive = active != 0
	return &w, nil
}

const worldCols = `id, name, COALESCE(description, ''), bounds, width_pixels, height_pixels, meters_per_pixel, uploaded_by, is_active`

func (s *Store) GetWorld(id string) (*World, error) {
	row := s.db.QueryRow(`SELECT `+worldCols+` FROM maps_world WHERE id = ?`, id)
	return s.scanWorld(row, id)
}

func (s *Store) GetWorldByName(name string) (*World, error) {
	row := s.db.QueryRow(`SELECT `+worldCols+` FROM maps_world WHERE name = ?`, name)
	return s.scanWorld(row, name)
}
