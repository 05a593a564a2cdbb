package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// MinFrameSize is the minimum width and height a frame must have to be
// usable for detection. Smaller frames carry too little signal to crop a
// person from.
const MinFrameSize = 32

var (
	// ErrDecode means the source could not be opened or decoded at all.
	ErrDecode = errors.New("cannot decode image or video source")

	// ErrInvalidImage means the source decoded but is unusable (too small).
	ErrInvalidImage = errors.New("invalid image")
)

// videoExtensions lists file extensions routed through the video frame
// extractor instead of the still-image decoder.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// Frame is a decoded raster image. It is owned by the caller and never
// mutated by the pipeline; Crop and Resize return new frames.
type Frame struct {
	img *image.RGBA
}

// FromImage converts any decoded image into a Frame.
func FromImage(src image.Image) *Frame {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return &Frame{img: rgba}
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Frame{img: dst}
}

// Decode decodes raw image bytes (JPEG, PNG, GIF or BMP).
func Decode(data []byte) (*Frame, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromImage(img), nil
}

// FromFile loads a frame from an image or video file. Video files yield
// their middle frame (see ExtractVideoFrame).
func FromFile(path string) (*Frame, error) {
	if IsVideoFile(path) {
		return ExtractVideoFrame(path, -1)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return Decode(data)
}

// IsVideoFile reports whether the path has a known video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.img.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.img.Bounds().Dy()
}

// RGBA exposes the underlying pixel buffer for feature extraction.
func (f *Frame) RGBA() *image.RGBA {
	return f.img
}

// Validate rejects frames too small for reliable detection.
func (f *Frame) Validate() error {
	if f == nil || f.img == nil {
		return ErrInvalidImage
	}
	if f.Width() < MinFrameSize || f.Height() < MinFrameSize {
		return fmt.Errorf("%w: %dx%d is below the %d px minimum", ErrInvalidImage, f.Width(), f.Height(), MinFrameSize)
	}
	return nil
}

// Crop returns a copy of the region [x1,x2)x[y1,y2), clipped to frame
// bounds. Fails when the clipped region is empty.
func (f *Frame) Crop(x1, y1, x2, y2 int) (*Frame, error) {
	w, h := f.Width(), f.Height()
	x1 = clampInt(x1, 0, w)
	y1 = clampInt(y1, 0, h)
	x2 = clampInt(x2, 0, w)
	y2 = clampInt(y2, 0, h)

	if x2 <= x1 || y2 <= y1 {
		return nil, fmt.Errorf("%w: empty crop region", ErrInvalidImage)
	}

	dst := image.NewRGBA(image.Rect(0, 0, x2-x1, y2-y1))
	draw.Draw(dst, dst.Bounds(), f.img, image.Pt(x1, y1), draw.Src)
	return &Frame{img: dst}, nil
}

// Resize scales the frame to exactly width x height using bilinear
// interpolation.
func (f *Frame) Resize(width, height int) *Frame {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), f.img, f.img.Bounds(), draw.Over, nil)
	return &Frame{img: dst}
}

// EncodeJPEG encodes the frame as JPEG for transport to the inference
// sidecar and the secondary verifier.
func (f *Frame) EncodeJPEG() ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
