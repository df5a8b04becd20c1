// pkg/driver/types.go
package driver

import (
	"time"

	"instrument-service/internal/model"
)

// Response is what one read of the link produced. A timeout is not an
// error: Expired is set and Raw holds whatever arrived.
type Response struct {
	Raw        []byte        `json:"-"`
	Lines      []string      `json:"lines"`
	Terminated bool          `json:"terminated"`
	Expired    bool          `json:"expired"`
	Polls      int           `json:"polls"`
	Extensions int           `json:"extensions"`
	Elapsed    time.Duration `json:"elapsed"`
}

// ByteCount returns the number of raw bytes received
func (r *Response) ByteCount() int {
	return len(r.Raw)
}

// Empty reports a response with no bytes at all
func (r *Response) Empty() bool {
	return len(r.Raw) == 0
}

// First returns the first line or an empty string
func (r *Response) First() string {
	if len(r.Lines) == 0 {
		return ""
	}
	return r.Lines[0]
}

// FaultStatus is the decoded fault register of an instrument
type FaultStatus struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

// ControllerInfo describes the link a controller drives
type ControllerInfo struct {
	Name             string               `json:"name"`
	Port             string               `json:"port"`
	ConnectionType   model.ConnectionType `json:"connection_type"`
	Framing          string               `json:"framing"`
	Encoding         string               `json:"encoding"`
	WriteTermination string               `json:"write_termination"`
	ReadTermination  string               `json:"read_termination"`
	ReadTimeout      time.Duration        `json:"read_timeout"`
	Dummy            bool                 `json:"dummy"`
}

// HealthMetrics contains instrument health information
type HealthMetrics struct {
	Healthy         bool          `json:"healthy"`
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time"`
	ErrorCount      int64         `json:"error_count"`
	TotalOperations int64         `json:"total_operations"`
	LastError       string        `json:"last_error,omitempty"`
	LastErrorTime   *time.Time    `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time    `json:"last_success_time,omitempty"`
}
