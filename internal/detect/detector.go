package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/vision"
)

// ErrNoPersonDetected means the detector found nothing in the person
// bucket above its confidence floor, or the winning box was degenerate
// after clipping.
var ErrNoPersonDetected = errors.New("no person detected in image/video")

// BoundingBox is an axis-aligned box in pixel coordinates with x1<x2 and
// y1<y2 once clipped.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Clip constrains the box to a width x height frame.
func (b BoundingBox) Clip(width, height int) BoundingBox {
	return BoundingBox{
		X1: clamp(b.X1, 0, float64(width)),
		Y1: clamp(b.Y1, 0, float64(height)),
		X2: clamp(b.X2, 0, float64(width)),
		Y2: clamp(b.Y2, 0, float64(height)),
	}
}

func (b BoundingBox) Width() float64  { return b.X2 - b.X1 }
func (b BoundingBox) Height() float64 { return b.Y2 - b.Y1 }

// Slice returns the box as [x1, y1, x2, y2] for persistence.
func (b BoundingBox) Slice() []float64 {
	return []float64{b.X1, b.Y1, b.X2, b.Y2}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Detection is a single detector hit.
type Detection struct {
	ClassID int
	Score   float64
	Box     BoundingBox
}

// Result holds at most one detection per semantic bucket: the
// highest-confidence candidate, first seen winning exact ties. Multiple
// people or vehicles in frame are not disambiguated.
type Result struct {
	Person *Detection
	Cycle  *Detection
}

// Detector locates a person and optionally a cycle in a frame.
type Detector interface {
	Detect(ctx context.Context, frame *vision.Frame) (*Result, error)
}

// RemoteDetector calls the inference sidecar's /detect endpoint with a
// JPEG frame and maps the returned class ids through the configured
// buckets.
type RemoteDetector struct {
	baseURL    string
	scoreFloor float64
	buckets    *ClassBuckets
	client     *http.Client
}

// NewRemoteDetector creates a detector client for the inference sidecar.
func NewRemoteDetector(baseURL string, scoreFloor float64, buckets *ClassBuckets, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		scoreFloor: scoreFloor,
		buckets:    buckets,
		client:     &http.Client{Timeout: timeout},
	}
}

// wireDetection mirrors the sidecar's JSON for a single detection.
type wireDetection struct {
	ClassID int       `json:"class_id"`
	Score   float64   `json:"score"`
	BBox    []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

// Detect runs one detector pass over the frame.
func (d *RemoteDetector) Detect(ctx context.Context, frame *vision.Frame) (*Result, error) {
	imageData, err := frame.EncodeJPEG()
	if err != nil {
		return nil, err
	}

	body, err := d.postImage(ctx, "/detect", imageData)
	if err != nil {
		return nil, err
	}

	var resp detectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse detector response: %w", err)
	}

	detections := make([]Detection, 0, len(resp.Detections))
	for _, wd := range resp.Detections {
		if len(wd.BBox) != 4 || wd.Score < d.scoreFloor {
			continue
		}
		detections = append(detections, Detection{
			ClassID: wd.ClassID,
			Score:   wd.Score,
			Box:     BoundingBox{X1: wd.BBox[0], Y1: wd.BBox[1], X2: wd.BBox[2], Y2: wd.BBox[3]},
		})
	}

	return selectBest(detections, d.buckets), nil
}

// postImage uploads the image as a multipart form to the given endpoint.
func (d *RemoteDetector) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read detector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// selectBest keeps the single highest-confidence detection per bucket.
// A strictly-greater comparison keeps the first-seen candidate on ties.
func selectBest(detections []Detection, buckets *ClassBuckets) *Result {
	result := &Result{}

	var personScore, cycleScore float64
	for i := range detections {
		det := &detections[i]
		if buckets.IsPerson(det.ClassID) && det.Score > personScore {
			personScore = det.Score
			result.Person = det
		}
		if buckets.IsCycle(det.ClassID) && det.Score > cycleScore {
			cycleScore = det.Score
			result.Cycle = det
		}
	}

	return result
}

// CropPerson detects the best person in the frame and returns the crop
// together with the clipped box. Returns ErrNoPersonDetected when no
// person is found or the clipped box has no area.
func CropPerson(ctx context.Context, d Detector, frame *vision.Frame) (*vision.Frame, *BoundingBox, error) {
	result, err := d.Detect(ctx, frame)
	if err != nil {
		return nil, nil, err
	}
	if result.Person == nil {
		return nil, nil, ErrNoPersonDetected
	}

	box := result.Person.Box.Clip(frame.Width(), frame.Height())
	if box.Width() <= 0 || box.Height() <= 0 {
		return nil, nil, ErrNoPersonDetected
	}

	crop, err := frame.Crop(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
	if err != nil {
		return nil, nil, ErrNoPersonDetected
	}
	return crop, &box, nil
}
