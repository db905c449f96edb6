package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("")
	var _ Value = Int(0)
	var _ Value = Bool(false)
	var _ Value = Array{}
	var _ Value = Object{}
}

func TestObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := Object{
		"b":      Int(1),
		"a":      Int(2),
		"_under": Int(3),
		"Z":      Int(4),
	}
	assert.Equal(t, []string{"Z", "_under", "a", "b"}, obj.SortedKeys())
}

func TestCompareKeysRFC8785(t *testing.T) {
	assert.Equal(t, 0, compareKeysRFC8785("a", "a"))
	assert.Equal(t, -1, compareKeysRFC8785("a", "ab"))
	assert.Equal(t, 1, compareKeysRFC8785("b", "a"))
	// U+FFFF sorts after a surrogate pair in UTF-16 but before it in UTF-8.
	assert.Equal(t, 1, compareKeysRFC8785("￿", "\U00010000"))
}

func TestObjectRoundTrip(t *testing.T) {
	obj := Object{
		"text":   String("hello"),
		"count":  Int(3),
		"ok":     Bool(true),
		"none":   Null{},
		"nested": Object{"list": Array{Int(1), String("two")}},
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"count":3,"nested":{"list":[1,"two"]},"none":null,"ok":true,"text":"hello"}`, string(data))

	var back Object
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, obj, back)
}

func TestUnmarshalRejectsFloats(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`{"score":0.25}`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "cart",
		"count": 5,
		"whole": float64(7),
		"tags":  []any{"a", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, Object{
		"name":  String("cart"),
		"count": Int(5),
		"whole": Int(7),
		"tags":  Array{String("a"), Null{}},
	}, v)

	_, err = FromGo(map[string]any{"score": 0.5})
	require.Error(t, err)

	_, err = FromGo(struct{}{})
	require.Error(t, err)
}

func TestObjectFromGoNil(t *testing.T) {
	obj, err := ObjectFromGo(nil)
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestObjectGetOnNil(t *testing.T) {
	var obj Object
	assert.Nil(t, obj.Get("missing"))
	assert.False(t, obj.Has("missing"))
}
