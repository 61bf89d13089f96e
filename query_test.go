package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBBox(t *testing.T) {
	b, err := parseBBox("")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = parseBBox("100,200,300,400")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, 100.0, b.MinX)
	assert.Equal(t, 400.0, b.MaxY)

	b, err = parseBBox(" -10.5, -20 , 0 , 5 ")
	require.NoError(t, err)
	assert.Equal(t, -10.5, b.MinX)

	for _, bad := range []string{"1,2,3", "1,2,3,4,5", "a,b,c,d", "10,0,0,5"} {
		_, err := parseBBox(bad)
		assert.Error(t, err, bad)
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% Ruins`, escapeLike("100% Ruins"))
	assert.Equal(t, `under\_score`, escapeLike("under_score"))
	assert.Equal(t, `back\\slash`, escapeLike(`back\slash`))
	assert.Equal(t, "Novigrad", escapeLike("Novigrad"))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 1, clampLimit(0))
	assert.Equal(t, 1, clampLimit(-5))
	assert.Equal(t, 20, clampLimit(20))
	assert.Equal(t, 50, clampLimit(50))
	assert.Equal(t, 50, clampLimit(500))
}

func TestStatusSummary(t *testing.T) {
	s := statusSummary(map[string]int{"cells": 100, "burgs": 12})
	assert.Equal(t, "cells=100 burgs=12 routes=0 rivers=0 markers=0", s)
}
