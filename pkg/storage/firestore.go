package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

const quotesCollection = "quotes"

// FirestoreProvider implements the Database interface using Google Cloud Firestore.
// Each quote is a document in the "quotes" collection holding the quote as a
// JSON blob next to its creation timestamp.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// the project ID can be inferred from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

// SaveQuote stores the quote under its ID.
func (f *FirestoreProvider) SaveQuote(ctx context.Context, quote types.Quote) error {
	if quote.ID == "" {
		return errors.New("quote ID cannot be empty")
	}
	jsonBytes, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("failed to marshal quote: %w", err)
	}
	_, err = f.client.Collection(quotesCollection).Doc(quote.ID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"kind":      string(quote.Kind),
		"timestamp": quote.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to save quote %s: %w", quote.ID, err)
	}
	return nil
}

// GetQuote retrieves a quote by ID.
func (f *FirestoreProvider) GetQuote(ctx context.Context, id string) (types.Quote, error) {
	if id == "" {
		return types.Quote{}, fmt.Errorf("%w: empty id", ErrQuoteNotFound)
	}
	doc, err := f.client.Collection(quotesCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, id)
		}
		return types.Quote{}, fmt.Errorf("failed to get quote %s: %w", id, err)
	}
	return decodeQuote(ctx, doc)
}

// ListQuotes retrieves the quotes created within the specified time range.
func (f *FirestoreProvider) ListQuotes(ctx context.Context, start, end time.Time) ([]types.Quote, error) {
	iter := f.client.Collection(quotesCollection).
		Where("timestamp", ">=", start).
		Where("timestamp", "<", end).
		OrderBy("timestamp", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var quotes []types.Quote
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating quotes: %w", err)
		}
		q, err := decodeQuote(ctx, doc)
		if err != nil {
			// skip malformed documents
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func decodeQuote(ctx context.Context, doc *firestore.DocumentSnapshot) (types.Quote, error) {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "quote doc missing json", slog.String("quoteID", doc.Ref.ID), slog.Any("err", err))
		return types.Quote{}, fmt.Errorf("quote %s missing json: %w", doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "quote doc json not string", slog.String("quoteID", doc.Ref.ID))
		return types.Quote{}, fmt.Errorf("quote %s json not string", doc.Ref.ID)
	}

	var q types.Quote
	if err := json.Unmarshal([]byte(jsonStr), &q); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal quote", slog.String("quoteID", doc.Ref.ID), slog.Any("err", err))
		return types.Quote{}, fmt.Errorf("failed to unmarshal quote %s: %w", doc.Ref.ID, err)
	}
	return q, nil
}
