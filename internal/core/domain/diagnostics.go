package domain

import "time"

type DiagnosticsStatus string

const (
	DiagnosticsSuccess DiagnosticsStatus = "success"
	DiagnosticsPartial DiagnosticsStatus = "partial"
	DiagnosticsFailure DiagnosticsStatus = "failure"
)

// CameraProbe holds the per-camera probe outcomes. Probe failures are recorded
// here as values, never returned as errors.
type CameraProbe struct {
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Reachable   bool   `json:"reachable"`
	PortOpen    bool   `json:"port_open"`
	PingOutput  string `json:"ping_output,omitempty"`
	TraceOutput string `json:"traceroute_output,omitempty"`
	Error       string `json:"error,omitempty"`
}

type DiagnosticsResult struct {
	ServerIP          string            `json:"server_ip"`
	InternetReachable bool              `json:"internet_reachable"`
	Camera            CameraProbe       `json:"camera"`
	Status            DiagnosticsStatus `json:"status"`
	Suggestions       []string          `json:"suggestions"`
	Duration          time.Duration     `json:"duration"`
	CheckedAt         time.Time         `json:"checked_at"`
}

// DeriveStatus maps the two decisive probes onto a status.
func DeriveStatus(reachable, portOpen bool) DiagnosticsStatus {
	switch {
	case reachable && portOpen:
		return DiagnosticsSuccess
	case reachable || portOpen:
		return DiagnosticsPartial
	default:
		return DiagnosticsFailure
	}
}
