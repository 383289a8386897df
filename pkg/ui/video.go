package ui

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// VideoDisplay is the live camera preview surface.
type VideoDisplay struct {
	widget.BaseWidget

	// mu guards latest and scheduled; image is only touched on the UI goroutine.
	mu        sync.Mutex
	latest    image.Image
	scheduled bool
	image     *canvas.Image
}

// NewVideoDisplay is used to create widget instance
func NewVideoDisplay() *VideoDisplay {
	v := &VideoDisplay{}
	v.ExtendBaseWidget(v)

	v.image = canvas.NewImageFromImage(nil)
	v.image.FillMode = canvas.ImageFillContain
	v.image.SetMinSize(fyne.NewSize(320, 240))
	return v
}

// UpdateFrame may be called from any goroutine. Frames that arrive faster
// than the UI redraws replace each other; only the newest is drawn.
func (v *VideoDisplay) UpdateFrame(img image.Image) {
	v.mu.Lock()
	v.latest = img
	if v.scheduled {
		v.mu.Unlock()
		return
	}
	v.scheduled = true
	v.mu.Unlock()

	fyne.Do(v.draw)
}

// Frame returns the newest frame handed to UpdateFrame.
func (v *VideoDisplay) Frame() image.Image {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}

func (v *VideoDisplay) draw() {
	v.mu.Lock()
	img := v.latest
	v.scheduled = false
	v.mu.Unlock()

	v.image.Image = img
	v.image.Refresh()
}

// CreateRenderer is used to create a video renderer
func (v *VideoDisplay) CreateRenderer() fyne.WidgetRenderer {
	return &videoRenderer{v}
}

type videoRenderer struct {
	v *VideoDisplay
}

// Destroy implements [fyne.WidgetRenderer].
func (r *videoRenderer) Destroy() {}

// MinSize implements [fyne.WidgetRenderer].
func (r *videoRenderer) MinSize() fyne.Size {
	return r.v.image.MinSize()
}

// Objects implements [fyne.WidgetRenderer].
func (r *videoRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.v.image}
}

// Refresh implements [fyne.WidgetRenderer].
func (r *videoRenderer) Refresh() {
	r.v.image.Refresh()
}

func (r *videoRenderer) Layout(s fyne.Size) {
	r.v.image.Resize(s)
}
