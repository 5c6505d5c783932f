package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"coaching-backend/internal/geometry"
)

func TestShapeKindRoundTrip(t *testing.T) {
	s := Shape{ID: "s1"}
	require.NoError(t, s.SetKind(&CardKind{Subtype: CardPain, Title: "Slow onboarding", Tags: []string{"b2b"}}))

	assert.Equal(t, ShapeCard, s.Type)
	assert.Equal(t, CardPain, s.Subtype)

	card, ok := s.Kind().(*CardKind)
	require.True(t, ok)
	assert.Equal(t, "Slow onboarding", card.Title)
	assert.Equal(t, CardPain, card.Subtype)
	assert.Equal(t, "Slow onboarding", s.Label())
}

func TestMalformedPayloadDecodesEmpty(t *testing.T) {
	s := Shape{Type: ShapeText, Payload: datatypes.JSON(`{"text": 12`)}

	k, ok := s.Kind().(*TextKind)
	require.True(t, ok)
	assert.Empty(t, k.Text)
	assert.Empty(t, s.Label())
}

func TestUnknownTypeFallsBackToRect(t *testing.T) {
	s := Shape{Type: "hexagon", Payload: datatypes.JSON(`{"label":"x"}`)}
	_, ok := s.Kind().(*RectKind)
	assert.True(t, ok)
	assert.False(t, ShapeType("hexagon").Valid())

	w, h := DefaultSize("hexagon")
	assert.Equal(t, 160.0, w)
	assert.Equal(t, 100.0, h)
}

func TestDefaultSizesRespectFloors(t *testing.T) {
	for _, typ := range []ShapeType{ShapeRect, ShapeEllipse, ShapeText, ShapeImage, ShapeTable, ShapeCard} {
		w, h := DefaultSize(typ)
		assert.GreaterOrEqual(t, w, MinShapeWidth, typ)
		assert.GreaterOrEqual(t, h, MinShapeHeight, typ)
	}
}

func TestCloneDetachesPayload(t *testing.T) {
	s := Shape{ID: "a", Type: ShapeRect, Payload: datatypes.JSON(`{"label":"a"}`)}
	c := s.Clone()
	c.Payload[2] = 'X'
	assert.Equal(t, `{"label":"a"}`, string(s.Payload))
}

func TestConnectionResolvesSides(t *testing.T) {
	c := Connection{FromAnchor: geometry.Anchor{X: 1, Y: 0.5}, ToAnchor: geometry.Anchor{X: 0.5, Y: 0}, ToSide: geometry.SideLeft}
	assert.Equal(t, geometry.SideRight, c.ResolvedFromSide())
	assert.Equal(t, geometry.SideLeft, c.ResolvedToSide())

	assert.True(t, (&Connection{FromShapeID: "a", ToShapeID: "b"}).Touches(map[string]struct{}{"b": {}}))
}
