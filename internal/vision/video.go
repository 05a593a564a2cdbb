package vision

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ExtractVideoFrame pulls a single frame from a video file. A negative
// frameIndex selects the middle frame, which is less likely to show a
// person half in or half out of view than the first or last frame. If the
// read at the chosen index fails, the first frame is tried before giving
// up.
func ExtractVideoFrame(path string, frameIndex int) (*Frame, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: could not open video %s: %v", ErrDecode, path, err)
	}
	defer capture.Close()

	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	if total <= 0 {
		return nil, fmt.Errorf("%w: video has no frames: %s", ErrDecode, path)
	}

	if frameIndex < 0 {
		frameIndex = total / 2
	}
	if frameIndex > total-1 {
		frameIndex = total - 1
	}

	mat := gocv.NewMat()
	defer mat.Close()

	capture.Set(gocv.VideoCapturePosFrames, float64(frameIndex))
	if ok := capture.Read(&mat); !ok || mat.Empty() {
		// Seeking can fail on poorly muxed files; fall back to the
		// first frame before raising.
		capture.Set(gocv.VideoCapturePosFrames, 0)
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			return nil, fmt.Errorf("%w: could not read any frame from %s", ErrDecode, path)
		}
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: converting video frame: %v", ErrDecode, err)
	}
	return FromImage(img), nil
}
