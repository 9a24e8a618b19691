package logging

import (
	"encoding/json"
	"log"
	"time"
)

const Service = "checkout-orchestrator"

type Fields struct {
	SessionID  string `json:"session_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Step       string `json:"step,omitempty"`
	State      string `json:"state,omitempty"`
	Status     string `json:"status,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Log writes one JSON line through the standard logger.
func Log(fields Fields) {
	payload := struct {
		Service   string `json:"service"`
		Timestamp string `json:"timestamp"`
		Fields
	}{
		Service:   Service,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Fields:    fields,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", Service, err.Error())
		return
	}
	log.Print(string(data))
}

func Err(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
