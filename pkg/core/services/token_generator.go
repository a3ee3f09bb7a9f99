package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/wadjakorntonsri/go-link-tracker/pkg/core/domain"
	"github.com/wadjakorntonsri/go-link-tracker/pkg/ports"
)

const (
	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	DefaultTokenLength = 8
	DefaultMaxAttempts = 10
)

// RandomTokenGenerator draws tokens from crypto/rand and skips candidates
// that already exist in the store.
type RandomTokenGenerator struct {
	store       ports.TokenChecker
	length      int
	maxAttempts int
}

func NewRandomTokenGenerator(store ports.TokenChecker, length, maxAttempts int) *RandomTokenGenerator {
	if length < 1 || length > domain.MaxTokenLength {
		length = DefaultTokenLength
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RandomTokenGenerator{store: store, length: length, maxAttempts: maxAttempts}
}

// Generate returns a token that did not exist when it was checked. The
// store's unique constraint is still the authority on insert.
func (g *RandomTokenGenerator) Generate(ctx context.Context) (string, error) {
	for i := 0; i < g.maxAttempts; i++ {
		token, err := randomToken(g.length)
		if err != nil {
			return "", err
		}

		exists, err := g.store.TokenExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", domain.ErrTokenSpaceExhausted
}

func randomToken(length int) (string, error) {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, length)
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		b[i] = charset[num.Int64()]
	}
	return string(b), nil
}
