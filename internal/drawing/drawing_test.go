package drawing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"onchainvitals/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyFullShapes(t *testing.T) {
	upd, err := Apply(nil, []byte(`{"shapes":[{"type":"line","x0":1,"y0":2,"x1":3,"y1":4,"line":{"color":"cyan"},"editable":true}]}`))
	require.NoError(t, err)
	require.True(t, upd.Changed)
	require.Len(t, upd.Shapes, 1)
	s := upd.Shapes[0]
	assert.Equal(t, "line", s.Type)
	assert.Equal(t, float64(3), s.X1)
	assert.Equal(t, "cyan", s.Line.Color)
	assert.Equal(t, true, s.Extra["editable"])

	raw, err := Encode(upd.Shapes)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"editable":true`)
}

func TestApplyFlatKeysMergeByIndex(t *testing.T) {
	current := []Shape{
		{Type: "line", X0: 1.0, Y0: 1.0, X1: 2.0, Y1: 2.0},
		{Type: "rect", X0: 5.0, Y0: 5.0, X1: 6.0, Y1: 6.0},
	}
	upd, err := Apply(current, []byte(`{"shapes[1].x0": 7, "shapes[1].line.color": "red"}`))
	require.NoError(t, err)
	require.True(t, upd.Changed)
	require.Len(t, upd.Shapes, 2)
	assert.Equal(t, current[0].X0, upd.Shapes[0].X0)
	assert.Equal(t, float64(7), upd.Shapes[1].X0)
	assert.Equal(t, float64(6), upd.Shapes[1].X1)
	assert.Equal(t, "red", upd.Shapes[1].Line.Color)

	upd, err = Apply(current, []byte(`{"shapes[0]": null}`))
	require.NoError(t, err)
	require.Len(t, upd.Shapes, 1)
	assert.Equal(t, "rect", upd.Shapes[0].Type)
}

func TestApplyFlatKeysIndexBounds(t *testing.T) {
	current := []Shape{{Type: "line", X0: 1.0, Y0: 1.0, X1: 2.0, Y1: 2.0}}

	upd, err := Apply(current, []byte(`{"shapes[1].type": "line", "shapes[1].x0": 3}`))
	require.NoError(t, err)
	require.Len(t, upd.Shapes, 2)
	assert.Equal(t, float64(3), upd.Shapes[1].X0)

	_, err = Apply(current, []byte(`{"shapes[2].x0": 1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = Apply(nil, []byte(`{"shapes[2000000].x0": 1}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestApplyIgnoresUnrelatedRelayout(t *testing.T) {
	current := []Shape{{Type: "line"}}
	upd, err := Apply(current, []byte(`{"xaxis.range[0]": "2024-01-01", "xaxis.range[1]": "2024-02-01"}`))
	require.NoError(t, err)
	assert.False(t, upd.Changed)
	assert.Equal(t, current, upd.Shapes)
}

func TestApplyRejectsBadPayload(t *testing.T) {
	for _, p := range []string{`nope`, `[1,2]`, `{"shapes": 3}`, `{"shapes[0]": 3}`} {
		_, err := Apply(nil, []byte(p))
		assert.True(t, errors.Is(err, ErrInvalidPayload), p)
	}
}

func TestServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := gormstore.NewGormStore(gormstore.MemoryPath)
	require.NoError(t, err)
	defer st.Close()
	svc := NewService(st)

	_, err = svc.Load(ctx, "bad key!")
	assert.True(t, errors.Is(err, ErrInvalidKey))

	got, err := svc.SetData(ctx, "chart1", []any{"2024-01-01", "2024-01-02"}, []any{1.0, 2.0})
	require.NoError(t, err)
	assert.Len(t, got.X, 2)
	assert.Empty(t, got.Shapes)

	got, err = svc.Relayout(ctx, "chart1", []byte(`{"shapes":[{"type":"line","x0":"2024-01-01","x1":"2024-01-02","y0":1,"y1":2}]}`))
	require.NoError(t, err)
	require.Len(t, got.Shapes, 1)

	got, err = svc.Relayout(ctx, "chart1", []byte(`{"shapes[0].y1": 3}`))
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.Shapes[0].Y1)
	assert.Len(t, got.Y, 2)

	_, err = svc.SetData(ctx, "chart1", []any{1}, []any{})
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestPageRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Page{Key: "chart1", Endpoint: "/api/draw/chart1"}.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, "chart1")
	assert.Contains(t, out, "eraseshape")
	assert.Contains(t, out, "plotly_relayout")
}
