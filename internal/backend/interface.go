package backend

import (
	"context"

	"cashcal/internal/amqp"
	"cashcal/internal/services"
	"cashcal/internal/tenant"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened directory, the optional projection
// queue and the cleanup that releases both.
type BackendResult struct {
	Directory tenant.Directory
	// Queue is nil when no broker is configured or it could not be reached.
	Queue   *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the queue as a services.Publisher, or nil without one.
func (r *BackendResult) Publisher() services.Publisher {
	if r.Queue == nil {
		return nil
	}
	return r.Queue
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	// AMQP is optional for every backend.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
