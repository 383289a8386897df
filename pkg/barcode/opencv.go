package barcode

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// OpenCVDecoder uses the OpenCV QR code detector. It only finds QR codes.
type OpenCVDecoder struct{}

func NewOpenCVDecoder() *OpenCVDecoder {
	return &OpenCVDecoder{}
}

func (o *OpenCVDecoder) Name() string { return "opencv" }

// Decode implements Decoder.
func (o *OpenCVDecoder) Decode(ctx context.Context, img image.Image, rotationDegrees int) ([]Barcode, error) {
	upright, err := Upright(img, rotationDegrees)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(upright)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	// The detector holds native state, so each call gets its own.
	detector := gocv.NewQRCodeDetector()
	defer detector.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	text := detector.DetectAndDecode(mat, &points, &straight)
	if text == "" {
		return nil, nil
	}
	return []Barcode{New(text, "QR_CODE", matCorners(points))}, nil
}

// matCorners reads the 4 corner points DetectAndDecode writes as a 1x4
// CV_32FC2 matrix.
func matCorners(points gocv.Mat) []image.Point {
	if points.Empty() || points.Total() < 4 {
		return nil
	}
	corners := make([]image.Point, 0, 4)
	for i := 0; i < 4; i++ {
		x := points.GetVecfAt(0, i)
		if len(x) < 2 {
			return nil
		}
		corners = append(corners, image.Pt(int(x[0]), int(x[1])))
	}
	return corners
}
