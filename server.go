package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"
)

// Server 运行期读路径: 定居点瓦片 + 世界瓦片 + 空间查询 + 区域标注
type Server struct {
	store   *Store
	burgSvc *BurgTileService
	engine  *gin.Engine
}

// InitServer serve 模式入口, 阻塞直至退出信号
func InitServer() {
	world, err := store.GetWorldByName(conf.Map.Name)
	if err != nil {
		log.Fatalf("active world %q not available: %v", conf.Map.Name, err)
	}
	burgSvc, err := NewBurgTileService(store, world.ID, conf.Server.CacheDir, conf.Map.TileSize)
	if err != nil {
		log.Fatalf("burg tile service init error: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{store: store, burgSvc: burgSvc, engine: gin.New()}
	s.engine.Use(gin.Recovery())
	s.routes()

	srv := &http.Server{Addr: conf.Server.Addr, Handler: s.engine}
	SafeExitInst.Register(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		log.Infof("HTTP 服务已安全退出")
	})

	log.Infof("serving on %s (world %q)", conf.Server.Addr, world.Name)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/worlds/:world/status", s.worldStatus)
	api.GET("/worlds/:world/tileset.json", s.worldTileset)
	api.GET("/worlds/:world/tiles/:z/:x/:y", s.worldTile)
	api.GET("/worlds/:world/layers/:layer", s.layerQuery)
	api.GET("/worlds/:world/burgs/search", s.burgSearch)

	api.GET("/burgs/:id", s.burgInfo)
	api.GET("/burgs/:id/tiles/:z/:x/:y", s.burgTile)

	api.POST("/regions", s.regionCreate)
	api.GET("/regions", s.regionList)
	api.GET("/regions/:id", s.regionGet)
	api.PATCH("/regions/:id", s.regionUpdate)
	api.DELETE("/regions/:id", s.regionDelete)
}

// httpError 错误分类映射到状态码
func httpError(c *gin.Context, err error) {
	var ve *ValidationError
	var nf *NotFoundError
	var te *TransactionError
	switch {
	case errors.As(err, &ve), errors.As(err, &te):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &nf):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Errorf("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) resolveWorld(key string) (*World, error) {
	w, err := s.store.GetWorldByName(key)
	if err == nil {
		return w, nil
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return s.store.GetWorld(key)
	}
	return nil, err
}

func (s *Server) worldStatus(c *gin.Context) {
	w, err := s.resolveWorld(c.Param("world"))
	if err != nil {
		httpError(c, err)
		return
	}
	status, err := s.store.GetIngestionStatus(w.ID)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"world": w.Name, "world_id": w.ID, "layers": status})
}

func (s *Server) worldTileset(c *gin.Context) {
	w, err := s.resolveWorld(c.Param("world"))
	if err != nil {
		httpError(c, err)
		return
	}
	path := filepath.Join(conf.Output.Directory, w.Name, "tileset.json")
	if _, err := os.Stat(path); err != nil {
		httpError(c, notFoundErr("tileset", w.Name))
		return
	}
	c.File(path)
}

// tileCoords 解析 z/x/y 路径参数, 非整数直接拒绝, 不参与路径拼接
func (s *Server) tileCoords(c *gin.Context) (z, x, y int, ok bool) {
	z, err1 := strconv.Atoi(c.Param("z"))
	x, err2 := strconv.Atoi(c.Param("x"))
	y, err3 := strconv.Atoi(c.Param("y"))
	if err1 != nil || err2 != nil || err3 != nil {
		httpError(c, validationErr("tile", "z/x/y must be integers"))
		return 0, 0, 0, false
	}
	return z, x, y, true
}

// worldTile 预渲染金字塔的静态透传
// 瓦片消费端看不到错误: 缺失瓦片回透明图而不是破图
func (s *Server) worldTile(c *gin.Context) {
	w, err := s.resolveWorld(c.Param("world"))
	if err != nil {
		httpError(c, err)
		return
	}
	z, x, y, ok := s.tileCoords(c)
	if !ok {
		return
	}
	path := filepath.Join(conf.Output.Directory, w.Name,
		strconv.Itoa(z), strconv.Itoa(x), strconv.Itoa(y)+".png")
	if data, err := os.ReadFile(path); err == nil {
		c.Data(http.StatusOK, "image/png", data)
		return
	}
	c.Data(http.StatusOK, "image/png", transparentTile(conf.Map.TileSize))
}

func (s *Server) layerQuery(c *gin.Context) {
	w, err := s.resolveWorld(c.Param("world"))
	if err != nil {
		httpError(c, err)
		return
	}
	bbox, err := parseBBox(c.Query("bbox"))
	if err != nil {
		httpError(c, err)
		return
	}
	features, err := s.store.QueryLayer(w.ID, c.Param("layer"), bbox)
	if err != nil {
		httpError(c, err)
		return
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = features
	c.JSON(http.StatusOK, fc)
}

func (s *Server) burgSearch(c *gin.Context) {
	w, err := s.resolveWorld(c.Param("world"))
	if err != nil {
		httpError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	hits, err := s.store.SearchBurgs(w.ID, c.Query("q"), limit)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": hits})
}

func (s *Server) burgID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpError(c, validationErr("id", "burg id must be an integer"))
		return 0, false
	}
	return id, true
}

func (s *Server) burgInfo(c *gin.Context) {
	id, ok := s.burgID(c)
	if !ok {
		return
	}
	info, err := s.burgSvc.GetBurgInfo(id)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) burgTile(c *gin.Context) {
	id, ok := s.burgID(c)
	if !ok {
		return
	}
	z, x, y, ok := s.tileCoords(c)
	if !ok {
		return
	}
	data, err := s.burgSvc.GetBurgTile(id, z, x, y)
	if err != nil {
		httpError(c, err)
		return
	}
	if data == nil {
		// 越界不是错误
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func (s *Server) regionCreate(c *gin.Context) {
	var req RegionCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpError(c, validationErr("body", err.Error()))
		return
	}
	r, err := s.store.CreateRegion(&req)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) regionList(c *gin.Context) {
	campaignID := c.Query("campaign_id")
	if campaignID == "" {
		httpError(c, validationErr("campaign_id", "required"))
		return
	}
	regions, err := s.store.ListRegions(campaignID)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

func (s *Server) regionGet(c *gin.Context) {
	r, err := s.store.GetRegion(c.Param("id"))
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) regionUpdate(c *gin.Context) {
	var req RegionUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		httpError(c, validationErr("body", err.Error()))
		return
	}
	r, err := s.store.UpdateRegion(c.Param("id"), &req)
	if err != nil {
		httpError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) regionDelete(c *gin.Context) {
	if err := s.store.DeleteRegion(c.Param("id")); err != nil {
		httpError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
