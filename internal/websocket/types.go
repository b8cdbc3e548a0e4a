package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// EventType represents the type of WebSocket event
type EventType string

const (
	// EventTypePrivacyScan is sent after every PII scan
	EventTypePrivacyScan EventType = "privacy_scan"
	// EventTypeRouteDecision is sent after every dispatch plan
	EventTypeRouteDecision EventType = "route_decision"
	// EventTypeGateVerdict is sent after every post-inference validation
	EventTypeGateVerdict EventType = "gate_verdict"
	// EventTypeConfigReload is sent when a configuration reload is applied
	EventTypeConfigReload EventType = "config_reload"
	// EventTypeConnection represents connection events
	EventTypeConnection EventType = "connection"
	// EventTypePong answers a client ping
	EventTypePong EventType = "pong"
)

// Event represents a WebSocket event sent to clients
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// PrivacyScanEvent carries scan metadata. Matched text is never broadcast.
type PrivacyScanEvent struct {
	RiskLevel    string   `json:"risk_level"`
	PIITypes     []string `json:"pii_types"`
	PIICount     int      `json:"pii_count"`
	ProcessingMS float64  `json:"processing_ms"`
}

// RouteDecisionEvent describes a dispatch plan
type RouteDecisionEvent struct {
	Route        string   `json:"route"`
	Source       string   `json:"source"`
	Requested    string   `json:"requested"`
	RiskLevel    string   `json:"risk_level"`
	Consulted    bool     `json:"router_consulted"`
	BlendedScore *float64 `json:"blended_score,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	ToolCount    int      `json:"tool_count"`
}

// GateVerdictEvent describes a post-inference verdict
type GateVerdictEvent struct {
	Escalate   bool    `json:"should_escalate"`
	Reason     string  `json:"reason"`
	Detail     string  `json:"detail"`
	Confidence float64 `json:"confidence"`
	Band       string  `json:"band"`
	CallCount  int     `json:"call_count"`
}

// ConfigReloadEvent reports the outcome of a configuration reload
type ConfigReloadEvent struct {
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// ConnectionEvent represents WebSocket connection events
type ConnectionEvent struct {
	Action    string `json:"action"` // "connected", "disconnected"
	ClientID  string `json:"client_id"`
	ClientIP  string `json:"client_ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ClientMessage represents messages sent from clients to server
type ClientMessage struct {
	Type string        `json:"type"`
	Data *Subscription `json:"data,omitempty"`
}

// Subscription narrows the events a client receives
type Subscription struct {
	Events []EventType `json:"events"`
	// Routes limits route_decision events to these routes when set.
	Routes []string `json:"routes,omitempty"`
	// EscalationsOnly drops gate verdicts that trust the local result.
	EscalationsOnly bool `json:"escalations_only,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	conn        *websocket.Conn
	Send        chan Event
	ConnectedAt time.Time
	IP          string
	UserAgent   string

	subscription *Subscription
}
