package vision

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

var outlineColor = color.RGBA{0, 255, 0, 0}

// Outline remembers where the last barcode was found so the preview can
// draw it for a while.
type Outline struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	corners []image.Point
	setAt   time.Time
}

// NewOutline creates an outline that expires ttl after Set. ttl <= 0 never
// expires.
func NewOutline(ttl time.Duration) *Outline {
	return &Outline{ttl: ttl, now: time.Now}
}

// Set replaces the outline. Fewer than 3 corners clear it.
func (o *Outline) Set(corners []image.Point) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(corners) < 3 {
		o.corners = nil
		return
	}
	o.corners = ReorderPoints(append([]image.Point(nil), corners...))
	o.setAt = o.now()
}

// Clear removes the outline.
func (o *Outline) Clear() {
	o.mu.Lock()
	o.corners = nil
	o.mu.Unlock()
}

// Corners returns the current outline, or nil if none is set or it expired.
func (o *Outline) Corners() []image.Point {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.corners == nil {
		return nil
	}
	if o.ttl > 0 && o.now().Sub(o.setAt) > o.ttl {
		return nil
	}
	return o.corners
}

// Annotate draws a closed polygon through corners with a dot on every
// corner and returns the result as a new image.
func Annotate(img image.Image, corners []image.Point) (image.Image, error) {
	if len(corners) < 2 {
		return img, nil
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert preview frame: %w", err)
	}
	defer mat.Close()

	// Dot size follows the code size so small codes stay readable.
	radius := int(DistanceBetweenPoints(corners[0], corners[1]) / 20)
	if radius < 4 {
		radius = 4
	}

	for i, pt := range corners {
		next := corners[(i+1)%len(corners)]
		gocv.Line(&mat, pt, next, outlineColor, 3)
		gocv.Circle(&mat, pt, radius, outlineColor, -1)
	}
	return mat.ToImage()
}
