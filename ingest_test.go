package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupAliases(t *testing.T) {
	p := featProps{"statefull": "Kingdom of Ald"}
	v, ok := p.lookup("stateFull")
	require.True(t, ok)
	assert.Equal(t, "Kingdom of Ald", v)

	p = featProps{"state_full": "Empire"}
	v, ok = p.lookup("stateFull")
	require.True(t, ok)
	assert.Equal(t, "Empire", v)

	// 规范名优先于别名
	p = featProps{"stateFull": "A", "statefull": "B"}
	v, _ = p.lookup("stateFull")
	assert.Equal(t, "A", v)

	_, ok = featProps{}.lookup("stateFull")
	assert.False(t, ok)
}

func TestDecodeInt(t *testing.T) {
	p := featProps{
		"id":     float64(42),
		"asStr":  "17",
		"asFrac": "3.7",
		"asBool": true,
		"bad":    "many",
	}

	v, err := p.decodeInt("id", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = p.decodeInt("asStr", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 17, v)

	v, err = p.decodeInt("asFrac", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = p.decodeInt("asBool", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = p.decodeInt("bad", false, 0)
	assert.Error(t, err)

	// 缺失: required 报错, 否则取默认
	_, err = p.decodeInt("missing", true, 0)
	assert.Error(t, err)
	v, err = p.decodeInt("missing", false, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestDecodeFloat(t *testing.T) {
	p := featProps{"a": 2.5, "b": "3.75", "c": "n/a"}
	assert.True(t, p.decodeFloat("a").Valid)
	assert.Equal(t, 2.5, p.decodeFloat("a").Float64)
	assert.Equal(t, 3.75, p.decodeFloat("b").Float64)
	assert.False(t, p.decodeFloat("c").Valid)
	assert.False(t, p.decodeFloat("missing").Valid)
	assert.Equal(t, 1.0, p.decodeFloatDefault("missing", 1.0))
}

func TestDecodeBool(t *testing.T) {
	p := featProps{
		"t1": true,
		"t2": float64(1),
		"t3": "yes",
		// 字符串按真值性处理: 非空即真, "0"/"false" 也不例外
		"t4": "0",
		"t5": "false",
		"f1": false,
		"f2": float64(0),
		"f3": "",
	}
	for _, k := range []string{"t1", "t2", "t3", "t4", "t5"} {
		assert.True(t, p.decodeBool(k), k)
	}
	for _, k := range []string{"f1", "f2", "f3", "missing"} {
		assert.False(t, p.decodeBool(k), k)
	}
}

func TestScrubString(t *testing.T) {
	assert.Equal(t, "abcdef", scrubString("abc�def"))
	// 非法 UTF-8 字节序列整体清除
	dirty := string([]byte{'a', 0xED, 0xA0, 0x80, 'b'})
	assert.Equal(t, "ab", scrubString(dirty))
	assert.Equal(t, "Ак-Мечеть", scrubString("Ак-Мечеть"))
}

func TestDecodeStringScrubs(t *testing.T) {
	p := featProps{"name": "Port� Royal"}
	assert.Equal(t, "Port Royal", p.decodeString("name"))
	assert.Equal(t, "", p.decodeString("missing"))
}

func TestIsValidLayer(t *testing.T) {
	for _, l := range layerOrder {
		assert.True(t, isValidLayer(l))
	}
	assert.False(t, isValidLayer("roads"))
	assert.False(t, isValidLayer(""))
}
