package model

import "time"

// Setting is one administrator-controlled value.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RequestLog captures a completed call to the LLM broker.
type RequestLog struct {
	ID           string    `db:"id" json:"id"`
	RequestID    string    `db:"request_id" json:"request_id,omitempty"`
	APIKeyID     string    `db:"api_key_id" json:"api_key_id"`
	ModelID      string    `db:"model_id" json:"model_id"`
	ProviderID   string    `db:"provider_id" json:"provider_id"`
	UpstreamID   string    `db:"upstream_id" json:"upstream_id"`
	FinishReason string    `db:"finish_reason" json:"finish_reason"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	LatencyMS    int64     `db:"latency_ms" json:"latency_ms"`
	StatusCode   int       `db:"status_code" json:"status_code"`
	IsStreamed   bool      `db:"is_streamed" json:"is_streamed"`
	IPAddress    string    `db:"ip_address" json:"ip_address"`
	UserAgent    string    `db:"user_agent" json:"user_agent"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// AuditEvent records an administrative change.
type AuditEvent struct {
	ID             string    `db:"id" json:"id"`
	Actor          string    `db:"actor" json:"actor"`
	TargetResource string    `db:"target_resource" json:"target_resource"`
	Action         string    `db:"action" json:"action"`
	DetailsJSON    string    `db:"details_json" json:"details_json"`
	IPAddress      string    `db:"ip_address" json:"ip_address,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// DailyStats represents aggregated usage data for a specific day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	TotalTokens    int     `db:"total_tokens" json:"total_tokens"`
	ErrorCount     int     `db:"error_count" json:"error_count"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}

type ModelUsage struct {
	ModelID  string `db:"model_id" json:"model_id"`
	Requests int    `db:"requests" json:"requests"`
	Tokens   int    `db:"tokens" json:"tokens"`
}
