package vision

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorderPoints(t *testing.T) {
	got := ReorderPoints([]image.Point{{100, 100}, {0, 0}, {0, 100}, {100, 0}})
	assert.Equal(t, []image.Point{{0, 0}, {100, 0}, {100, 100}, {0, 100}}, got)

	three := []image.Point{{1, 1}, {2, 2}, {3, 3}}
	assert.Equal(t, three, ReorderPoints(three))
}

func TestDistanceBetweenPoints(t *testing.T) {
	assert.InDelta(t, 5.0, DistanceBetweenPoints(image.Pt(0, 0), image.Pt(3, 4)), 1e-9)
}

func TestBoundingBox(t *testing.T) {
	assert.Equal(t, image.Rect(2, 1, 9, 7), BoundingBox([]image.Point{{5, 1}, {2, 7}, {9, 3}}))
	assert.True(t, BoundingBox(nil).Empty())
}

func TestOutlineExpires(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	o := NewOutline(2 * time.Second)
	o.now = func() time.Time { return now }

	assert.Nil(t, o.Corners())

	o.Set([]image.Point{{10, 10}, {0, 0}, {0, 10}, {10, 0}})
	require.Len(t, o.Corners(), 4)
	assert.Equal(t, image.Pt(0, 0), o.Corners()[0])

	now = now.Add(3 * time.Second)
	assert.Nil(t, o.Corners())

	o.Set([]image.Point{{1, 1}})
	assert.Nil(t, o.Corners(), "too few corners clears the outline")

	o.Set([]image.Point{{0, 0}, {5, 0}, {5, 5}})
	o.Clear()
	assert.Nil(t, o.Corners())
}

func TestAnnotateDrawsOutline(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	corners := []image.Point{{10, 10}, {50, 10}, {50, 50}, {10, 50}}

	out, err := Annotate(img, corners)
	require.NoError(t, err)
	require.Equal(t, img.Bounds().Size(), out.Bounds().Size())

	r, g, b, _ := out.At(30, 10).RGBA()
	assert.Zero(t, r>>8)
	assert.Equal(t, uint32(255), g>>8)
	assert.Zero(t, b>>8)

	// Untouched pixels stay black.
	assert.Equal(t, color.RGBAModel.Convert(color.Black), color.RGBAModel.Convert(out.At(30, 30)))
}
