package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/solarsavings/pkg/types"
)

var (
	ErrQuoteNotFound = errors.New("quote not found")
)

// Database defines the interface for persisting calculated quotes.
type Database interface {
	// SaveQuote inserts or replaces the quote with the same ID.
	SaveQuote(ctx context.Context, quote types.Quote) error
	GetQuote(ctx context.Context, id string) (types.Quote, error)
	// ListQuotes returns quotes created in [start, end), oldest first.
	ListQuotes(ctx context.Context, start, end time.Time) ([]types.Quote, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "firestore", "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
