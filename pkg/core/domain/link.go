package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxTokenLength matches the width of the token column in every store.
	MaxTokenLength = 32
	MaxURLLength   = 2048

	idRefPrefix = "id:"
)

// TrackerLink binds a public token to a destination URL and a click counter.
type TrackerLink struct {
	ID             int64     `json:"id" yaml:"id"`
	Token          string    `json:"token" yaml:"token"`
	DestinationURL string    `json:"destination_url" yaml:"destination_url"`
	ClickCount     int64     `json:"click_count" yaml:"click_count"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// LinkRef identifies a tracker link either by its public token or by its
// storage id. Exactly one of the fields is set.
type LinkRef struct {
	Token string
	ID    int64
}

// IsID reports whether the reference points at a storage id.
func (r LinkRef) IsID() bool { return r.Token == "" }

func (r LinkRef) String() string {
	if r.IsID() {
		return idRefPrefix + strconv.FormatInt(r.ID, 10)
	}
	return r.Token
}

// ParseLinkRef accepts either a token ("aB3dE9fH") or an internal
// reference of the form "id:42".
func ParseLinkRef(s string) (LinkRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LinkRef{}, fmt.Errorf("%w: link identifier is required", ErrInvalidInput)
	}

	if rest, ok := strings.CutPrefix(s, idRefPrefix); ok {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return LinkRef{}, fmt.Errorf("%w: invalid link id %q", ErrInvalidInput, rest)
		}
		return LinkRef{ID: id}, nil
	}

	if err := ValidateToken(s); err != nil {
		return LinkRef{}, err
	}
	return LinkRef{Token: s}, nil
}

// ValidateToken checks the token syntax: 1-32 ASCII letters or digits.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	if len(token) > MaxTokenLength {
		return fmt.Errorf("%w: token longer than %d characters", ErrInvalidInput, MaxTokenLength)
	}
	for i := 0; i < len(token); i++ {
		if !isAlphanumeric(token[i]) {
			return fmt.Errorf("%w: token must be alphanumeric", ErrInvalidInput)
		}
	}
	return nil
}

// NormalizeDestinationURL trims the input and checks it is an absolute
// http(s) URL with a host. The returned string is stored verbatim.
func NormalizeDestinationURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: destination URL is required", ErrInvalidInput)
	}
	if len(raw) > MaxURLLength {
		return "", fmt.Errorf("%w: destination URL longer than %d bytes", ErrInvalidInput, MaxURLLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed destination URL", ErrInvalidInput)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%w: destination URL must use http or https", ErrInvalidInput)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: destination URL must include a host", ErrInvalidInput)
	}
	return raw, nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
