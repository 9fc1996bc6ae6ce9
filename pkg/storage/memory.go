package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raterudder/solarsavings/pkg/types"
)

// Memory is a Database kept in process memory, for development and tests.
// Quotes are stored JSON encoded so callers never share state with it.
type Memory struct {
	mu     sync.RWMutex
	quotes map[string][]byte
}

// NewMemory returns an empty Memory database.
func NewMemory() *Memory {
	return &Memory{quotes: make(map[string][]byte)}
}

// SaveQuote stores the quote under its ID.
func (m *Memory) SaveQuote(ctx context.Context, quote types.Quote) error {
	if quote.ID == "" {
		return errors.New("quote ID cannot be empty")
	}
	b, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	m.mu.Lock()
	m.quotes[quote.ID] = b
	m.mu.Unlock()
	return nil
}

// GetQuote retrieves a quote by ID.
func (m *Memory) GetQuote(ctx context.Context, id string) (types.Quote, error) {
	m.mu.RLock()
	b, ok := m.quotes[id]
	m.mu.RUnlock()
	if !ok {
		return types.Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
	}
	var q types.Quote
	if err := json.Unmarshal(b, &q); err != nil {
		return types.Quote{}, fmt.Errorf("failed to unmarshal quote %s: %w", id, err)
	}
	return q, nil
}

// ListQuotes retrieves the quotes created within the specified time range.
func (m *Memory) ListQuotes(ctx context.Context, start, end time.Time) ([]types.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var quotes []types.Quote
	for id, b := range m.quotes {
		var q types.Quote
		if err := json.Unmarshal(b, &q); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quote %s: %w", id, err)
		}
		if q.CreatedAt.Before(start) || !q.CreatedAt.Before(end) {
			continue
		}
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].CreatedAt.Equal(quotes[j].CreatedAt) {
			return quotes[i].ID < quotes[j].ID
		}
		return quotes[i].CreatedAt.Before(quotes[j].CreatedAt)
	})
	return quotes, nil
}

// Close implements Database.
func (m *Memory) Close() error {
	return nil
}
