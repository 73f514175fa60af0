package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"cashcal/internal/core"
)

// Reasons a projection was requested.
const (
	ReasonManual          = "manual"
	ReasonScheduleChanged = "schedule_changed"
)

// ProjectionRequest asks the worker to materialise a user's schedule
// occurrences. A zero Until lets the worker pick its default horizon.
type ProjectionRequest struct {
	UserID     string    `json:"user_id"`
	Until      core.Date `json:"until,omitzero"`
	ScheduleID int64     `json:"schedule_id,omitempty"`
	Reason     string    `json:"reason"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewProjectionRequest(userID string, until core.Date, reason string) *ProjectionRequest {
	return &ProjectionRequest{
		UserID:    userID,
		Until:     until,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ProjectionRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ProjectionRequestFromJSON(data []byte) (*ProjectionRequest, error) {
	var msg ProjectionRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("projection request without user id")
	}
	return &msg, nil
}
