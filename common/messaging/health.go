package messaging

import (
	"time"
)

// Connection is the part of a broker connection health checks need.
type Connection interface {
	IsConnected() bool
	RTT() (time.Duration, error)
}

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Healthy reports whether the connection is up and answered a ping.
func (s HealthStatus) Healthy() bool {
	return s.Connected && s.Error == ""
}

// CheckHealth measures a server round trip on conn.
func CheckHealth(conn Connection) HealthStatus {
	if conn == nil {
		return HealthStatus{Error: "client is nil"}
	}
	if !conn.IsConnected() {
		return HealthStatus{Error: "not connected to message broker"}
	}

	rtt, err := conn.RTT()
	if err != nil {
		return HealthStatus{Connected: true, Error: "health ping failed: " + err.Error()}
	}
	return HealthStatus{Connected: true, LatencyMS: rtt.Milliseconds()}
}
