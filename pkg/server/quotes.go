package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/raterudder/solarsavings/pkg/ingest"
	"github.com/raterudder/solarsavings/pkg/log"
	"github.com/raterudder/solarsavings/pkg/types"
)

// demandQuoteBody is a demand quote request that may carry the customer's
// interval export inline.
type demandQuoteBody struct {
	types.DemandQuoteRequest
	Intervals string `json:"intervals,omitempty"`
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &types.FormatError{Reason: "invalid request body", Err: err}
	}
	return nil
}

func (s *Server) handleDemandQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts, err := s.ingestOptions(r)
	if err != nil {
		writeError(ctx, w, "invalid options", err)
		return
	}
	var body demandQuoteBody
	if err := s.decodeBody(w, r, &body); err != nil {
		writeError(ctx, w, "failed to decode demand quote", err)
		return
	}

	var series *types.ParsedSeries
	if body.Intervals != "" {
		parsed, err := ingest.Parse(ctx, strings.NewReader(body.Intervals), opts)
		if err != nil {
			writeError(ctx, w, "failed to parse intervals", err)
			return
		}
		// the summary is kept but a year of readings is too large to persist
		parsed.Readings = nil
		series = &parsed
	}

	dq, err := s.calculator.CalculateDemand(ctx, series, body.DemandQuoteRequest)
	if err != nil {
		writeError(ctx, w, "failed to calculate demand quote", err)
		return
	}
	s.saveAndWrite(w, r, types.Quote{
		Kind:   types.QuoteKindDemand,
		Demand: &dq,
	})
}

func (s *Server) handleResidentialQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.ResidentialQuoteRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(ctx, w, "failed to decode residential quote", err)
		return
	}

	rq, err := s.calculator.CalculateResidential(ctx, req)
	if err != nil {
		writeError(ctx, w, "failed to calculate residential quote", err)
		return
	}
	s.saveAndWrite(w, r, types.Quote{
		Kind:        types.QuoteKindResidential,
		Residential: &rq,
	})
}

// saveAndWrite assigns an ID to q, persists it and writes it back.
func (s *Server) saveAndWrite(w http.ResponseWriter, r *http.Request, q types.Quote) {
	ctx := r.Context()
	q.ID = s.newID()
	q.CreatedAt = s.now().UTC()

	if err := s.storage.SaveQuote(ctx, q); err != nil {
		writeError(ctx, w, "failed to save quote", err)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "saved quote", slog.String("quoteID", q.ID), slog.String("kind", string(q.Kind)))

	w.Header().Set("Location", fmt.Sprintf("/api/quotes/%s", q.ID))
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := s.storage.GetQuote(ctx, r.PathValue("id"))
	if err != nil {
		writeError(ctx, w, "failed to get quote", err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.calculator.Schedule())
}
