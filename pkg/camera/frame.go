package camera

import (
	"image"
	"sync/atomic"
	"time"
)

// Frame is one captured image handed to an analyzer. The analyzer borrows
// it and must call Release exactly once when it is done with it.
type Frame struct {
	Seq             uint64
	Timestamp       time.Time
	RotationDegrees int
	Image           image.Image

	released  atomic.Bool
	onRelease func(*Frame)
}

// NewFrame creates a frame. onRelease, if not nil, runs on the first Release.
func NewFrame(seq uint64, ts time.Time, rotation int, img image.Image, onRelease func(*Frame)) *Frame {
	return &Frame{
		Seq:             seq,
		Timestamp:       ts,
		RotationDegrees: rotation,
		Image:           img,
		onRelease:       onRelease,
	}
}

// Release returns the frame to its owner. It reports false, and does
// nothing, if the frame was already released.
func (f *Frame) Release() bool {
	if !f.released.CompareAndSwap(false, true) {
		return false
	}
	if f.onRelease != nil {
		f.onRelease(f)
	}
	return true
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	return f.released.Load()
}
