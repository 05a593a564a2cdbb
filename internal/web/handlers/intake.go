package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/SamarthP7704/cycle-guard-makeuc/internal/config"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/detect"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/store"
	"github.com/SamarthP7704/cycle-guard-makeuc/internal/vision"
)

// Processor runs the surveillance pipeline on an intake frame.
type Processor interface {
	ProcessDropoff(ctx context.Context, frame *vision.Frame, imagePath string) (*store.Event, error)
	ProcessPickup(ctx context.Context, frame *vision.Frame, imagePath string) (*store.Event, error)
}

// IntakeHandler handles drop-off and pickup submissions.
type IntakeHandler struct {
	processor Processor
	uploads   *config.UploadsConfig
}

func NewIntakeHandler(processor Processor, uploads *config.UploadsConfig) *IntakeHandler {
	return &IntakeHandler{processor: processor, uploads: uploads}
}

// Dropoff registers a drop-off from an uploaded image or video.
func (h *IntakeHandler) Dropoff(w http.ResponseWriter, r *http.Request) {
	h.handleIntake(w, r, h.processor.ProcessDropoff)
}

// Pickup runs a pickup check against recent drop-offs.
func (h *IntakeHandler) Pickup(w http.ResponseWriter, r *http.Request) {
	h.handleIntake(w, r, h.processor.ProcessPickup)
}

func (h *IntakeHandler) handleIntake(
	w http.ResponseWriter,
	r *http.Request,
	process func(context.Context, *vision.Frame, string) (*store.Event, error),
) {
	if err := r.ParseMultipartForm(h.uploads.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	savedPath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	frame, err := vision.FromFile(savedPath)
	if err != nil {
		os.Remove(savedPath)
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	event, err := process(r.Context(), frame, savedPath)
	if err != nil {
		os.Remove(savedPath)
		respondError(w, intakeStatus(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, event)
}

// intakeStatus maps pipeline errors to HTTP status codes. Bad input is
// the client's problem, everything else is ours.
func intakeStatus(err error) int {
	switch {
	case errors.Is(err, vision.ErrDecode),
		errors.Is(err, vision.ErrInvalidImage),
		errors.Is(err, detect.ErrNoPersonDetected):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// saveUpload stores the evidence file under a fresh name, keeping the
// original extension so video files stay recognizable.
func (h *IntakeHandler) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(h.uploads.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	path := filepath.Join(h.uploads.Dir, uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}

	log.Printf("saved upload %s", path)
	return path, nil
}
