package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/raterudder/solarsavings/pkg/storage"
	"github.com/raterudder/solarsavings/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveQuote(ctx context.Context, quote types.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockDatabase) GetQuote(ctx context.Context, id string) (types.Quote, error) {
	args := m.Called(ctx, id)
	if len(args) > 0 {
		return args.Get(0).(types.Quote), args.Error(1)
	}
	return types.Quote{}, nil
}

func (m *MockDatabase) ListQuotes(ctx context.Context, start, end time.Time) ([]types.Quote, error) {
	args := m.Called(ctx, start, end)
	if len(args) > 0 {
		if args.Get(0) == nil {
			return nil, args.Error(1)
		}
		return args.Get(0).([]types.Quote), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
