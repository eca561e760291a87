package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Detail      string `json:"detail,omitempty"`
}

// PanelMetrics is returned by GET /v1/metrics/panel.
type PanelMetrics struct {
	MessagesSent       int64            `json:"messagesSent"`
	MessagesFailed     int64            `json:"messagesFailed"`
	ValidationErrors   map[string]int64 `json:"validationErrors"`
	WidgetErrors       int64            `json:"widgetErrors"`
	ErrorsDismissed    int64            `json:"errorsDismissed"`
	TransportErrorRate float64          `json:"transportErrorRate"`
	SessionHitRate     float64          `json:"sessionHitRate"`
	Period             string           `json:"period"`
}
