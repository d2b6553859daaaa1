package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// APIResponse is the envelope for mutating endpoints and errors. Read
// endpoints return their resource directly.
type APIResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

type HealthData struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusData struct {
	Running          bool     `json:"running"`
	Paused           bool     `json:"paused"`
	QueueSize        int      `json:"queue_size"`
	PendingFiles     int      `json:"pending_files"`
	IncomingDir      string   `json:"incoming_dir"`
	OutputDir        string   `json:"output_dir"`
	SupportedFormats []string `json:"supported_formats"`
	MaxFileSizeMB    float64  `json:"max_file_size_mb"`
}

type ProcessRequest struct {
	FilePath       string `json:"file_path,omitempty"`
	ForceReprocess bool   `json:"force_reprocess,omitempty"`
}

type UploadData struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// WriteJSON writes a resource directly, without the envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes the envelope for a mutating endpoint.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, APIResponse{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
