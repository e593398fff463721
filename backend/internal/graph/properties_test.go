package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProperties_JSONPreservesKinds(t *testing.T) {
	props := Properties{
		"title":  String("Hello"),
		"score":  Number(500),
		"final":  Bool(true),
		"tags":   Strings([]string{"a", "b"}),
		"venue":  Map(Properties{"city": String("Leeds")}),
		"absent": Value{},
	}

	raw, err := encodeProperties(props)
	require.NoError(t, err)

	decoded, err := decodeProperties(raw)
	require.NoError(t, err)

	assert.Equal(t, KindString, decoded["title"].Kind())
	assert.Equal(t, 500.0, decoded.GetNumber("score"))
	b, ok := decoded["final"].AsBool()
	assert.True(t, ok)
	assert.True(t, b)
	tags, ok := decoded["tags"].AsList()
	require.True(t, ok)
	assert.Len(t, tags, 2)
	venue, ok := decoded["venue"].AsMap()
	require.True(t, ok)
	assert.Equal(t, "Leeds", venue.GetString("city"))
	assert.True(t, decoded["absent"].IsNull())
}

func TestValueOf_RejectsUnsupportedTypes(t *testing.T) {
	_, err := ValueOf(struct{}{})
	assert.Error(t, err)

	_, err = PropertiesOf(map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestProperties_UnmarshalFromRequestBody(t *testing.T) {
	var in NodeInput
	err := json.Unmarshal([]byte(`{"type":"concept","name":"graph","properties":{"n":2,"nested":{"ok":true}}}`), &in)
	require.NoError(t, err)

	assert.Equal(t, NodeTypeConcept, in.Type)
	assert.Equal(t, 2.0, in.Properties.GetNumber("n"))
	assert.Equal(t, map[string]any{"n": 2.0, "nested": map[string]any{"ok": true}}, in.Properties.Interface())
}

func TestProperties_CloneIsDeep(t *testing.T) {
	orig := Properties{"nested": Map(Properties{"k": String("v")})}
	cp := orig.Clone()

	nested, _ := cp["nested"].AsMap()
	nested["k"] = String("changed")

	origNested, _ := orig["nested"].AsMap()
	assert.Equal(t, "v", origNested.GetString("k"))
}
