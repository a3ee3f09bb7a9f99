package ports

import (
	"context"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
)

// TokenChecker is the part of the store the token generator consults.
type TokenChecker interface {
	TokenExists(ctx context.Context, token string) (bool, error)
}

// LinkStore defines storage operations for tracker links.
// Implementations must be safe for concurrent use.
type LinkStore interface {
	TokenChecker

	Create(ctx context.Context, link *domain.TrackerLink) error // sets link.ID, ErrDuplicateToken on conflict
	GetByToken(ctx context.Context, token string) (*domain.TrackerLink, error)
	GetByID(ctx context.Context, id int64) (*domain.TrackerLink, error)
	IncrementClicks(ctx context.Context, token string) error // atomic, in the store
	Delete(ctx context.Context, token string) error
	List(ctx context.Context) ([]domain.TrackerLink, error) // newest first
	Close() error
}

// TokenGenerator produces tokens that were unused at the time of the check.
type TokenGenerator interface {
	Generate(ctx context.Context) (string, error)
}

// LinkResolver is what the redirect endpoint needs.
type LinkResolver interface {
	Resolve(ctx context.Context, token string) (*domain.TrackerLink, error)
	RecordClick(ctx context.Context, token string) error
}

// LinkService defines the business logic operations
type LinkService interface {
	LinkResolver

	CreateLink(ctx context.Context, destinationURL string) (*domain.TrackerLink, error)
	DeleteLink(ctx context.Context, identifier string) error
	GetLink(ctx context.Context, identifier string) (*domain.TrackerLink, error)
	ListLinks(ctx context.Context) ([]domain.TrackerLink, error)
	ImportLink(ctx context.Context, link *domain.TrackerLink) error
}
