package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHTTPErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{validationErr("bbox", "bad input"), http.StatusBadRequest},
		{&TransactionError{Layer: "burgs", Field: "id", Err: errors.New("boom")}, http.StatusBadRequest},
		{notFoundErr("burg", "7"), http.StatusNotFound},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		ctx, _ := gin.CreateTestContext(w)
		httpError(ctx, c.err)
		assert.Equal(t, c.code, w.Code, "%v", c.err)
	}
}

func TestTileCoordsParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Params = gin.Params{{Key: "z", Value: "3"}, {Key: "x", Value: "7"}, {Key: "y", Value: "0"}}
	z, x, y, ok := s.tileCoords(ctx)
	assert.True(t, ok)
	assert.Equal(t, 3, z)
	assert.Equal(t, 7, x)
	assert.Equal(t, 0, y)

	// 非整数路径段不得进入文件路径拼接
	for _, bad := range []string{"..", "3a", ""} {
		w = httptest.NewRecorder()
		ctx, _ = gin.CreateTestContext(w)
		ctx.Params = gin.Params{{Key: "z", Value: bad}, {Key: "x", Value: "0"}, {Key: "y", Value: "0"}}
		_, _, _, ok = s.tileCoords(ctx)
		assert.False(t, ok, bad)
		assert.Equal(t, http.StatusBadRequest, w.Code, bad)
	}
}

func TestBurgIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	w := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(w)
	ctx.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := s.burgID(ctx)
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	w = httptest.NewRecorder()
	ctx, _ = gin.CreateTestContext(w)
	ctx.Params = gin.Params{{Key: "id", Value: "seventeen"}}
	_, ok = s.burgID(ctx)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
