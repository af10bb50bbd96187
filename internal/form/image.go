package form

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/SanmishaTech/jssp-sub001/internal/apiclient"
)

// jpegQuality is used when re-encoding downscaled JPEG uploads.
const jpegQuality = 85

// Downscale shrinks an image attachment so that neither side exceeds maxDim,
// preserving aspect ratio. Non-images, formats imaging cannot encode, and
// images already within bounds are returned unchanged.
func Downscale(a apiclient.Attachment, maxDim int) (apiclient.Attachment, error) {
	if maxDim <= 0 || !strings.HasPrefix(a.ContentType, "image/") {
		return a, nil
	}
	format, err := imaging.FormatFromFilename(a.Filename)
	if err != nil {
		return a, nil
	}

	img, err := imaging.Decode(bytes.NewReader(a.Data), imaging.AutoOrientation(true))
	if err != nil {
		return a, fmt.Errorf("decode %s: %w", a.Filename, err)
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return a, nil
	}

	resized := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return a, fmt.Errorf("encode %s: %w", a.Filename, err)
	}
	a.Data = buf.Bytes()
	return a, nil
}
