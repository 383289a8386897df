package scan

import (
	"time"

	"github.com/google/uuid"

	"github.com/intothevoid/keenonqr/pkg/barcode"
)

// Detection is a decoded frame handed to the UI.
type Detection struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"sessionId"`
	FrameSeq   uint64    `json:"frameSeq"`
	CapturedAt time.Time `json:"capturedAt"`
	DetectedAt time.Time `json:"detectedAt"`

	// Barcode is the first barcode of the frame with a raw value.
	Barcode barcode.Barcode `json:"barcode"`
	// Barcodes is everything the decoder returned for the frame.
	Barcodes []barcode.Barcode `json:"barcodes"`
}

// Message is the dialog text: the raw value when raw is set, otherwise a
// description shaped by the barcode's value type.
func (d Detection) Message(raw bool) string {
	if raw {
		return d.Barcode.RawValue
	}
	return d.Barcode.Describe()
}
