package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/snarg/audio-transcriber/internal/transcribe"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	ModelError    string            `json:"model_error,omitempty"`
	Inference     *InferenceStatus  `json:"inference,omitempty"`
}

// InferenceStatus reports admission-gate occupancy.
type InferenceStatus struct {
	Slots    int `json:"slots"`
	InFlight int `json:"in_flight"`
	Waiting  int `json:"waiting"`
}

// GateStats exposes admission-gate occupancy.
type GateStats interface {
	Slots() int
	InFlight() int
	Waiting() int
}

type HealthHandler struct {
	handle    *transcribe.Handle
	gate      GateStats
	tempDir   string
	version   string
	startTime time.Time
}

func NewHealthHandler(handle *transcribe.Handle, gate GateStats, tempDir, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		handle:    handle,
		gate:      gate,
		tempDir:   tempDir,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	resp := HealthResponse{
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	}

	// Model check
	checks["model"] = h.handle.Status()
	if p, err := h.handle.Provider(); err == nil {
		resp.Provider = p.Name()
		resp.Model = p.Model()
	} else {
		if loadErr := h.handle.Err(); loadErr != nil {
			resp.ModelError = loadErr.Error()
		}
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// Staging directory check
	if h.tempDir != "" {
		if err := checkWritableDir(h.tempDir); err != nil {
			checks["temp_dir"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["temp_dir"] = "ok"
		}
	}

	if h.gate != nil {
		resp.Inference = &InferenceStatus{
			Slots:    h.gate.Slots(),
			InFlight: h.gate.InFlight(),
			Waiting:  h.gate.Waiting(),
		}
	}

	resp.Status = status
	WriteJSON(w, httpStatus, resp)
}

// checkWritableDir verifies dir exists and accepts new files.
func checkWritableDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".healthcheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
