package main

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var numericPrefix = regexp.MustCompile(`^-?\d+(?:\.\d+)?`)

// parseNumeric 解析可能带单位后缀的数值属性, 如 "1920px"
func parseNumeric(v string) (float64, bool) {
	m := numericPrefix.FindString(strings.TrimSpace(v))
	if m == "" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal([]byte(m), &f); err != nil {
		return 0, false
	}
	return f, true
}

// parseSVGDimensions 读取根元素 width/height, 缺失时回退 viewBox 第 3/4 位
func parseSVGDimensions(data []byte) (int, int, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, validationErr("svg", "not parseable: "+err.Error())
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		// 只看根元素
		var widthAttr, heightAttr, viewBox string
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				widthAttr = a.Value
			case "height":
				heightAttr = a.Value
			case "viewBox":
				viewBox = a.Value
			}
		}
		w, wok := parseNumeric(widthAttr)
		h, hok := parseNumeric(heightAttr)
		if !wok || !hok {
			if parts := strings.Fields(viewBox); len(parts) == 4 {
				if !wok {
					w, wok = parseNumeric(parts[2])
				}
				if !hok {
					h, hok = parseNumeric(parts[3])
				}
			}
		}
		if wok && hok && w > 0 && h > 0 {
			return int(math.Round(w)), int(math.Round(h)), nil
		}
		return 0, 0, validationErr("svg", "unable to determine dimensions")
	}
	return 0, 0, validationErr("svg", "no root element")
}

// extractScale 读取 GeoJSON metadata.scale.meters_per_pixel
// 缺失或非数值返回 nil, 由调用方默认为 1, 不作为错误
func extractScale(data []byte) *float64 {
	var doc struct {
		Metadata struct {
			Scale map[string]interface{} `json:"scale"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	v, ok := doc.Metadata.Scale["meters_per_pixel"]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		if n > 0 {
			return &n
		}
	case string:
		if f, ok := parseNumeric(n); ok && f > 0 {
			return &f
		}
	}
	return nil
}

// MapMetadata 导入与瓦片流水线共用的规范化元数据
type MapMetadata struct {
	World          string  `json:"world"`
	GeneratedAt    string  `json:"generated_at"`
	SourceSVG      string  `json:"source_svg"`
	WidthPixels    int     `json:"width_pixels"`
	HeightPixels   int     `json:"height_pixels"`
	MetersPerPixel float64 `json:"meters_per_pixel"`
	Bounds         Bounds  `json:"bounds"`
}

// buildMapMetadata 由源 SVG 与各层 GeoJSON 构建规范化元数据
// 比例尺取任一文件中首个有效的 meters_per_pixel, 全部缺失默认为 1
func buildMapMetadata(world, svgPath string, layerFiles map[string]string) (*MapMetadata, error) {
	svgData, err := os.ReadFile(svgPath)
	if err != nil {
		return nil, err
	}
	w, h, err := parseSVGDimensions(svgData)
	if err != nil {
		return nil, err
	}

	mpp := 1.0
	for _, p := range layerFiles {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if s := extractScale(data); s != nil {
			mpp = *s
			break
		}
	}

	return &MapMetadata{
		World:          world,
		GeneratedAt:    time.Now().UTC().Format(time.RFC3339),
		SourceSVG:      svgPath,
		WidthPixels:    w,
		HeightPixels:   h,
		MetersPerPixel: mpp,
		Bounds:         computeBounds(w, h, mpp),
	}, nil
}

// writeMetadataFile 写 <world>_mapinfo.json 旁车文件, 下游瓦片任务消费
func writeMetadataFile(meta *MapMetadata) (string, error) {
	dir := filepath.Dir(meta.SourceSVG)
	path := filepath.Join(dir, meta.World+"_mapinfo.json")
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	log.Infof("saved map metadata to %s", path)
	return path, nil
}

// checkDeclaredDimensions 声明尺寸与 SVG 固有尺寸交叉校验, 不一致则整批终止
// 两路输入均不可信, 渲染前必须对得上
func checkDeclaredDimensions(declaredW, declaredH int, svgData []byte) error {
	w, h, err := parseSVGDimensions(svgData)
	if err != nil {
		return err
	}
	if w != declaredW || h != declaredH {
		return &DimensionMismatchError{
			DeclaredW: declaredW, DeclaredH: declaredH,
			ActualW: w, ActualH: h,
		}
	}
	return nil
}
