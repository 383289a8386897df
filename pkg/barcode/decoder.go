package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrUnknownDecoder is returned by NewDecoder for an unsupported name.
	ErrUnknownDecoder = errors.New("unknown decoder")
	// ErrRotation is returned for rotations that are not a multiple of 90.
	ErrRotation = errors.New("unsupported rotation")
)

// Decoder finds barcodes in an image. A nil error with no barcodes means
// nothing was found. rotationDegrees is the clockwise rotation that makes
// img upright.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, img image.Image, rotationDegrees int) ([]Barcode, error)
}

// NewDecoder returns the decoder registered under name.
func NewDecoder(name string) (Decoder, error) {
	switch name {
	case "zxing":
		return NewZXingDecoder(), nil
	case "opencv":
		return NewOpenCVDecoder(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDecoder, name)
}

// Task is a decode running in the background.
type Task struct {
	done     chan struct{}
	barcodes []Barcode
	err      error
}

// Process starts decoding img on its own goroutine and returns immediately.
// A panic inside the decoder completes the task with an error.
func Process(ctx context.Context, d Decoder, img image.Image, rotationDegrees int) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.barcodes = nil
				t.err = fmt.Errorf("decoder %s panicked: %v", d.Name(), r)
			}
		}()
		t.barcodes, t.err = d.Decode(ctx, img, rotationDegrees)
	}()
	return t
}

// Done is closed once the decode has completed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the decode completes.
func (t *Task) Result() ([]Barcode, error) {
	<-t.done
	return t.barcodes, t.err
}

// Upright rotates img clockwise by rotationDegrees.
func Upright(img image.Image, rotationDegrees int) (image.Image, error) {
	var code gocv.RotateFlag
	switch rotationDegrees {
	case 0:
		return img, nil
	case 90:
		code = gocv.Rotate90Clockwise
	case 180:
		code = gocv.Rotate180Clockwise
	case 270:
		code = gocv.Rotate90CounterClockwise
	default:
		return nil, fmt.Errorf("%w: %d", ErrRotation, rotationDegrees)
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Rotate(src, &dst, code)

	return dst.ToImage()
}

// FirstNonEmpty returns the first barcode with a raw value.
func FirstNonEmpty(barcodes []Barcode) (Barcode, bool) {
	for _, b := range barcodes {
		if b.RawValue != "" {
			return b, true
		}
	}
	return Barcode{}, false
}
