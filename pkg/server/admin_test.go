package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raterudder/solarsavings/pkg/storage/storagemock"
	"github.com/raterudder/solarsavings/pkg/types"
)

func TestAdminListQuotes(t *testing.T) {
	verifier, priv := setupOIDCTest(t)
	validAdminToken := generateTestToken(t, priv, "admin@example.com", "admin1")
	validUserToken := generateTestToken(t, priv, "user@example.com", "user1")

	quotes := []types.Quote{
		{ID: "q1", Kind: types.QuoteKindDemand, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "q2", Kind: types.QuoteKindResidential, CreatedAt: testNow.Add(-time.Minute)},
	}

	newServer := func(db *storagemock.MockDatabase) http.Handler {
		srv := newTestServer(t, db)
		srv.adminEmails = []string{"admin@example.com"}
		srv.oidcVerifiers = map[string]tokenVerifier{"google": verifier}
		return srv.setupHandler()
	}

	t.Run("Missing Token", func(t *testing.T) {
		handler := newServer(&storagemock.MockDatabase{})
		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Invalid Token", func(t *testing.T) {
		handler := newServer(&storagemock.MockDatabase{})
		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Unauthorized - Not Admin", func(t *testing.T) {
		handler := newServer(&storagemock.MockDatabase{})
		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes", nil)
		req.Header.Set("Authorization", "Bearer "+validUserToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "forbidden", decodeError(t, rr))
	})

	t.Run("Authorized - Admin", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListQuotes", mock.Anything, testNow.Add(-defaultListWindow), testNow).Return(quotes, nil).Once()
		handler := newServer(db)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes", nil)
		req.Header.Set("Authorization", "Bearer "+validAdminToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var got []types.Quote
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		if assert.Len(t, got, 2) {
			assert.Equal(t, "q1", got[0].ID)
			assert.Equal(t, "q2", got[1].ID)
		}
		db.AssertExpectations(t)
	})

	t.Run("Explicit Range", func(t *testing.T) {
		start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
		db := &storagemock.MockDatabase{}
		db.On("ListQuotes", mock.Anything, mock.MatchedBy(start.Equal), mock.MatchedBy(end.Equal)).Return(nil, nil).Once()
		handler := newServer(db)

		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes?start=2024-06-01T00:00:00Z&end=2024-07-01T00:00:00Z", nil)
		req.Header.Set("Authorization", "Bearer "+validAdminToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, "[]", rr.Body.String())
		db.AssertExpectations(t)
	})

	t.Run("Bad Range", func(t *testing.T) {
		handler := newServer(&storagemock.MockDatabase{})
		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes?start=2024-07-01T00:00:00Z&end=2024-06-01T00:00:00Z", nil)
		req.Header.Set("Authorization", "Bearer "+validAdminToken)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Bypass Auth", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		db.On("ListQuotes", mock.Anything, mock.Anything, mock.Anything).Return(quotes, nil).Once()
		srv := newTestServer(t, db)
		srv.bypassAuth = true

		req := httptest.NewRequest(http.MethodGet, "/api/admin/quotes", nil)
		rr := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		db.AssertExpectations(t)
	})
}
