package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
)

// memStore is a minimal in-process LinkStore.
type memStore struct {
	mu      sync.Mutex
	links   map[string]*domain.TrackerLink
	nextID  int64
	creates int
}

func newMemStore() *memStore {
	return &memStore{links: map[string]*domain.TrackerLink{}}
}

func (m *memStore) TokenExists(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[token]
	return ok, nil
}

func (m *memStore) Create(_ context.Context, link *domain.TrackerLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if _, ok := m.links[link.Token]; ok {
		return domain.ErrDuplicateToken
	}
	m.nextID++
	link.ID = m.nextID
	stored := *link
	m.links[link.Token] = &stored
	return nil
}

func (m *memStore) GetByToken(_ context.Context, token string) (*domain.TrackerLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (m *memStore) GetByID(ctx context.Context, id int64) (*domain.TrackerLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range m.links {
		if link.ID == id {
			cp := *link
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) IncrementClicks(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[token]
	if !ok {
		return domain.ErrNotFound
	}
	link.ClickCount++
	return nil
}

func (m *memStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[token]; !ok {
		return domain.ErrNotFound
	}
	delete(m.links, token)
	return nil
}

func (m *memStore) List(context.Context) ([]domain.TrackerLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TrackerLink, 0, len(m.links))
	for _, link := range m.links {
		out = append(out, *link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Close() error { return nil }

// scriptedTokens hands out tokens in order and counts calls.
type scriptedTokens struct {
	tokens []string
	calls  int
}

func (s *scriptedTokens) Generate(context.Context) (string, error) {
	if s.calls >= len(s.tokens) {
		return "", domain.ErrTokenSpaceExhausted
	}
	token := s.tokens[s.calls]
	s.calls++
	return token, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(store *memStore) *LinkService {
	return NewLinkService(store, NewRandomTokenGenerator(store, DefaultTokenLength, DefaultMaxAttempts), quietLogger(), DefaultMaxAttempts)
}

func TestCreateLinkRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, "  https://example.com/page  ")
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if len(link.Token) != 8 || link.ClickCount != 0 || link.ID == 0 {
		t.Errorf("unexpected link %+v", link)
	}

	got, err := svc.Resolve(ctx, link.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.DestinationURL != "https://example.com/page" {
		t.Errorf("destination = %q", got.DestinationURL)
	}

	again, _ := svc.Resolve(ctx, link.Token)
	if again.ClickCount != got.ClickCount {
		t.Error("resolving must not change the click count")
	}
}

func TestCreateLinkUniqueTokens(t *testing.T) {
	svc := newService(newMemStore())
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		link, err := svc.CreateLink(context.Background(), "https://example.com")
		if err != nil {
			t.Fatal(err)
		}
		if seen[link.Token] {
			t.Fatalf("duplicate token %s", link.Token)
		}
		seen[link.Token] = true
	}
}

func TestCreateLinkRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "   ", "not a url", "mailto:a@b.c", "https://"} {
		store := newMemStore()
		tokens := &scriptedTokens{tokens: []string{"abcdEFGH"}}
		svc := NewLinkService(store, tokens, quietLogger(), DefaultMaxAttempts)

		_, err := svc.CreateLink(context.Background(), in)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("CreateLink(%q) = %v, want invalid input", in, err)
		}
		if tokens.calls != 0 {
			t.Errorf("CreateLink(%q) consulted the generator", in)
		}
		if store.creates != 0 {
			t.Errorf("CreateLink(%q) touched the store", in)
		}
	}
}

func TestCreateLinkRetriesOnDuplicateInsert(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &domain.TrackerLink{Token: "taken001", DestinationURL: "https://x.example"})

	tokens := &scriptedTokens{tokens: []string{"taken001", "free0001"}}
	svc := NewLinkService(store, tokens, quietLogger(), DefaultMaxAttempts)

	link, err := svc.CreateLink(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.Token != "free0001" {
		t.Errorf("token = %s, want free0001", link.Token)
	}
	if tokens.calls != 2 {
		t.Errorf("generator calls = %d, want 2", tokens.calls)
	}
}

func TestCreateLinkGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &domain.TrackerLink{Token: "taken001", DestinationURL: "https://x.example"})

	script := make([]string, DefaultMaxAttempts+5)
	for i := range script {
		script[i] = "taken001"
	}
	tokens := &scriptedTokens{tokens: script}
	svc := NewLinkService(store, tokens, quietLogger(), DefaultMaxAttempts)

	_, err := svc.CreateLink(ctx, "https://example.com")
	if !errors.Is(err, domain.ErrTokenSpaceExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if tokens.calls != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", tokens.calls, DefaultMaxAttempts)
	}
}

func TestDeleteLink(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()

	byToken, _ := svc.CreateLink(ctx, "https://a.example")
	byID, _ := svc.CreateLink(ctx, "https://b.example")

	if err := svc.DeleteLink(ctx, byToken.Token); err != nil {
		t.Fatalf("delete by token: %v", err)
	}
	if _, err := svc.Resolve(ctx, byToken.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("resolve after delete = %v", err)
	}

	if err := svc.DeleteLink(ctx, domain.LinkRef{ID: byID.ID}.String()); err != nil {
		t.Fatalf("delete by id: %v", err)
	}
	if _, err := svc.GetLink(ctx, byID.Token); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get after delete = %v", err)
	}

	if err := svc.DeleteLink(ctx, "missing1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete missing = %v", err)
	}
	if err := svc.DeleteLink(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("delete empty = %v", err)
	}
}

func TestResolveUnknownAndMalformed(t *testing.T) {
	svc := newService(newMemStore())
	for _, token := range []string{"doesnotexist", "", "../etc", "way-too-long-token-with-dashes"} {
		if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Resolve(%q) = %v, want not found", token, err)
		}
	}
}

func TestListLinksNeverNil(t *testing.T) {
	svc := newService(newMemStore())
	links, err := svc.ListLinks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if links == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestRecordClickConcurrent(t *testing.T) {
	svc := newService(newMemStore())
	ctx := context.Background()
	link, _ := svc.CreateLink(ctx, "https://example.com")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.RecordClick(ctx, link.Token); err != nil {
				t.Errorf("RecordClick: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := svc.GetLink(ctx, link.Token)
	if got.ClickCount != n {
		t.Errorf("clicks = %d, want %d", got.ClickCount, n)
	}
}

func TestImportLink(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	ctx := context.Background()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	link := &domain.TrackerLink{ID: 99, Token: "imported", DestinationURL: " https://example.com ", ClickCount: 7, CreatedAt: created}
	if err := svc.ImportLink(ctx, link); err != nil {
		t.Fatalf("ImportLink: %v", err)
	}
	got, err := svc.GetLink(ctx, "imported")
	if err != nil {
		t.Fatal(err)
	}
	if got.ClickCount != 7 || !got.CreatedAt.Equal(created) || got.DestinationURL != "https://example.com" {
		t.Errorf("imported link = %+v", got)
	}

	if err := svc.ImportLink(ctx, &domain.TrackerLink{Token: "imported", DestinationURL: "https://example.com"}); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Errorf("re-import = %v, want duplicate", err)
	}

	bad := []*domain.TrackerLink{
		{Token: "bad-token", DestinationURL: "https://example.com"},
		{Token: "okToken1", DestinationURL: "ftp://example.com"},
		{Token: "okToken2", DestinationURL: "https://example.com", ClickCount: -1},
	}
	for _, l := range bad {
		if err := svc.ImportLink(ctx, l); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("ImportLink(%+v) = %v, want invalid input", l, err)
		}
	}
}

func TestCreateLinkHonoursConfiguredAttempts(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	_ = store.Create(ctx, &domain.TrackerLink{Token: "taken001", DestinationURL: "https://x.example"})

	tokens := &scriptedTokens{tokens: []string{"taken001", "taken001", "taken001", "taken001", "free0001"}}
	svc := NewLinkService(store, tokens, quietLogger(), 3)

	_, err := svc.CreateLink(ctx, "https://example.com")
	if !errors.Is(err, domain.ErrTokenSpaceExhausted) {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if tokens.calls != 3 {
		t.Errorf("attempts = %d, want 3", tokens.calls)
	}

	if svc := NewLinkService(store, tokens, quietLogger(), 0); svc.maxAttempts != DefaultMaxAttempts {
		t.Errorf("zero attempts should fall back, got %d", svc.maxAttempts)
	}
}
