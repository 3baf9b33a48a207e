package repositories

import "context"

// Repository aggregates all repository interfaces.
type Repository interface {
	// Request workflow domain
	Request() RequestRepository
	Assignee() AssigneeRepository

	// User directory domain
	User() UserRepository

	// Adjacent domains
	Query() QueryRepository
	Notification() NotificationRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager manages repository lifecycle.
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
