package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumeric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"2000", 2000, true},
		{"2000px", 2000, true},
		{" 1080.5 ", 1080.5, true},
		{"-12.5em", -12.5, true},
		{"px2000", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := parseNumeric(c.in)
		assert.Equal(t, c.ok, ok, "input %q", c.in)
		assert.Equal(t, c.want, got, "input %q", c.in)
	}
}

func TestParseSVGDimensionsAttrs(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="2000" height="1000"></svg>`)
	w, h, err := parseSVGDimensions(svg)
	require.NoError(t, err)
	assert.Equal(t, 2000, w)
	assert.Equal(t, 1000, h)
}

func TestParseSVGDimensionsUnits(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="1920px" height="1080px"></svg>`)
	w, h, err := parseSVGDimensions(svg)
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)
}

func TestParseSVGDimensionsViewBoxFallback(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 800 600"></svg>`)
	w, h, err := parseSVGDimensions(svg)
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestParseSVGDimensionsMissing(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	_, _, err := parseSVGDimensions(svg)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestExtractScale(t *testing.T) {
	withScale := []byte(`{"type":"FeatureCollection","metadata":{"scale":{"meters_per_pixel":10.5}},"features":[]}`)
	s := extractScale(withScale)
	require.NotNil(t, s)
	assert.Equal(t, 10.5, *s)

	asString := []byte(`{"metadata":{"scale":{"meters_per_pixel":"25"}}}`)
	s = extractScale(asString)
	require.NotNil(t, s)
	assert.Equal(t, 25.0, *s)

	assert.Nil(t, extractScale([]byte(`{"metadata":{"scale":{"meters_per_pixel":"coarse"}}}`)))
	assert.Nil(t, extractScale([]byte(`{"metadata":{"scale":{"meters_per_pixel":-3}}}`)))
	assert.Nil(t, extractScale([]byte(`{"type":"FeatureCollection","features":[]}`)))
	assert.Nil(t, extractScale([]byte(`not json`)))
}

func TestCheckDeclaredDimensions(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="2000" height="1000"></svg>`)
	require.NoError(t, checkDeclaredDimensions(2000, 1000, svg))

	err := checkDeclaredDimensions(1999, 1000, svg)
	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 2000, dm.ActualW)
	assert.Equal(t, 1999, dm.DeclaredW)
}
