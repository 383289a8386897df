package camera

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when the device delivered no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// Capturer is the camera session seen by a Source.
type Capturer interface {
	// Read blocks until the next image is available.
	Read() (image.Image, error)
	Close() error
}

// VideoStream manages the webcam connection
type VideoStream struct {
	deviceID int

	mu     sync.Mutex
	webcam *gocv.VideoCapture
	frame  *gocv.Mat // Keep a reusable matrix to save memory
	closed bool
}

// NewVideoStream opens the capture device. An error here is a camera
// acquisition failure.
func NewVideoStream(id, width, height int) (*VideoStream, error) {
	cam, err := gocv.VideoCaptureDevice(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %d: %w", id, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return nil, fmt.Errorf("device %d is not available", id)
	}

	cam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cam.Set(gocv.VideoCaptureFrameHeight, float64(height))

	mat := gocv.NewMat()
	return &VideoStream{
		deviceID: id,
		webcam:   cam,
		frame:    &mat,
	}, nil
}

// DeviceID returns the index the stream was opened with.
func (vs *VideoStream) DeviceID() int {
	return vs.deviceID
}

// Read returns the current frame as a standard Go image. The reusable Mat
// is copied out by ToImage, so the returned image stays valid.
func (vs *VideoStream) Read() (image.Image, error) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.closed {
		return nil, errors.New("video stream is closed")
	}
	if !vs.webcam.Read(vs.frame) {
		return nil, fmt.Errorf("cannot read frame from device %d", vs.deviceID)
	}
	if vs.frame.Empty() {
		return nil, ErrEmptyFrame
	}

	img, err := vs.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

// Close releases the device. Safe to call more than once.
func (vs *VideoStream) Close() error {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.closed {
		return nil
	}
	vs.closed = true
	err := vs.webcam.Close()
	if ferr := vs.frame.Close(); err == nil {
		err = ferr
	}
	return err
}
