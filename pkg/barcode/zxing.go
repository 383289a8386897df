package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ZXingDecoder runs the gozxing readers for QR, Data Matrix, Code 128 and
// EAN-13 over each image. The readers keep state between calls, so a
// ZXingDecoder must not decode on more than one goroutine at a time.
type ZXingDecoder struct {
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			datamatrix.NewDataMatrixReader(),
			oned.NewCode128Reader(),
			oned.NewEAN13Reader(),
		},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (z *ZXingDecoder) Name() string { return "zxing" }

// Decode implements Decoder. Readers that see no symbol, or a symbol that
// fails its checksum or format check, contribute nothing.
func (z *ZXingDecoder) Decode(ctx context.Context, img image.Image, rotationDegrees int) ([]Barcode, error) {
	upright, err := Upright(img, rotationDegrees)
	if err != nil {
		return nil, err
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(upright)
	if err != nil {
		return nil, fmt.Errorf("failed to get NewBinaryBitmapFromImage: %w", err)
	}

	var (
		barcodes []Barcode
		seen     = make(map[string]bool)
	)
	for _, reader := range z.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := reader.Decode(bmp, z.hints)
		if err != nil {
			var re gozxing.ReaderException
			if errors.As(err, &re) {
				continue
			}
			return nil, fmt.Errorf("failed to decode the barcode contents: %w", err)
		}

		format := result.GetBarcodeFormat().String()
		key := format + "\x00" + result.GetText()
		if seen[key] {
			continue
		}
		seen[key] = true
		barcodes = append(barcodes, New(result.GetText(), format, resultCorners(result.GetResultPoints())))
	}
	return barcodes, nil
}

func resultCorners(points []gozxing.ResultPoint) []image.Point {
	corners := make([]image.Point, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		corners = append(corners, image.Pt(int(math.Round(p.GetX())), int(math.Round(p.GetY()))))
	}
	return corners
}
