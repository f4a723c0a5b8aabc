package auditlog

import "context"

type Repository interface {
	// List returns the newest entries first.
	List(ctx context.Context, limit int) ([]*Entry, error)
	Create(ctx context.Context, e *Entry) error
}
