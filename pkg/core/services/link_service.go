package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

type LinkService struct {
	repo        ports.LinkStore
	tokens      ports.TokenGenerator
	logger      *slog.Logger
	maxAttempts int
	now         func() time.Time
}

// NewLinkService bounds insert retries by maxAttempts; values below 1 select
// DefaultMaxAttempts.
func NewLinkService(repo ports.LinkStore, tokens ports.TokenGenerator, logger *slog.Logger, maxAttempts int) *LinkService {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &LinkService{
		repo:        repo,
		tokens:      tokens,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// CreateLink validates destinationURL before touching storage, then inserts
// a record under a fresh token. A unique-constraint rejection from the
// store means another writer won the race; a new token is drawn.
func (s *LinkService) CreateLink(ctx context.Context, destinationURL string) (*domain.TrackerLink, error) {
	dest, err := domain.NormalizeDestinationURL(destinationURL)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		token, err := s.tokens.Generate(ctx)
		if err != nil {
			return nil, err
		}

		link := &domain.TrackerLink{
			Token:          token,
			DestinationURL: dest,
			ClickCount:     0,
			CreatedAt:      s.now().UTC(),
		}

		err = s.repo.Create(ctx, link)
		if err == nil {
			s.logger.Info("tracker link created", "id", link.ID, "token", link.Token)
			return link, nil
		}
		if !domain.IsDuplicateToken(err) {
			return nil, err
		}
		s.logger.Warn("token collision on insert, retrying", "attempt", attempt)
	}

	return nil, domain.ErrTokenSpaceExhausted
}

// DeleteLink removes the tracker link named by identifier (a token or "id:<n>").
func (s *LinkService) DeleteLink(ctx context.Context, identifier string) error {
	link, err := s.GetLink(ctx, identifier)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, link.Token); err != nil {
		return err
	}
	s.logger.Info("tracker link deleted", "id", link.ID, "token", link.Token)
	return nil
}

func (s *LinkService) GetLink(ctx context.Context, identifier string) (*domain.TrackerLink, error) {
	ref, err := domain.ParseLinkRef(identifier)
	if err != nil {
		return nil, err
	}
	if ref.IsID() {
		return s.repo.GetByID(ctx, ref.ID)
	}
	return s.repo.GetByToken(ctx, ref.Token)
}

func (s *LinkService) ListLinks(ctx context.Context) ([]domain.TrackerLink, error) {
	links, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if links == nil {
		links = []domain.TrackerLink{}
	}
	return links, nil
}

// Resolve looks up a token for redirection. Malformed tokens can never
// match a record and resolve to ErrNotFound.
func (s *LinkService) Resolve(ctx context.Context, token string) (*domain.TrackerLink, error) {
	if err := domain.ValidateToken(token); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByToken(ctx, token)
}

func (s *LinkService) RecordClick(ctx context.Context, token string) error {
	return s.repo.IncrementClicks(ctx, token)
}

// ImportLink stores a record exported from another instance, keeping its
// token, click count and creation time.
func (s *LinkService) ImportLink(ctx context.Context, link *domain.TrackerLink) error {
	if err := domain.ValidateToken(link.Token); err != nil {
		return err
	}
	dest, err := domain.NormalizeDestinationURL(link.DestinationURL)
	if err != nil {
		return err
	}
	if link.ClickCount < 0 {
		return fmt.Errorf("%w: click count cannot be negative", domain.ErrInvalidInput)
	}

	link.DestinationURL = dest
	if link.CreatedAt.IsZero() {
		link.CreatedAt = s.now()
	}
	link.CreatedAt = link.CreatedAt.UTC()
	link.ID = 0

	return s.repo.Create(ctx, link)
}

var _ ports.LinkService = (*LinkService)(nil)
