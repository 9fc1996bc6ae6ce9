package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/solarsavings/pkg/ingest"
	"github.com/raterudder/solarsavings/pkg/log"
)

// handleAnalyzeIntervals parses a raw interval export from the request body
// and returns its demand summary. The resampled readings are only included
// when includeReadings=true.
func (s *Server) handleAnalyzeIntervals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts, err := s.ingestOptions(r)
	if err != nil {
		writeError(ctx, w, "invalid options", err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	series, err := ingest.Parse(ctx, body, opts)
	if err != nil {
		writeError(ctx, w, "failed to parse intervals", err)
		return
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"analyzed intervals",
		slog.Int("rawReadings", series.RawReadings),
		slog.Int("intervals", len(series.Readings)),
		slog.Float64("peakKW", series.PeakKW),
		slog.Int("warnings", len(series.Warnings)),
	)

	if r.URL.Query().Get("includeReadings") != "true" {
		series.Readings = nil
	}
	writeJSON(w, http.StatusOK, series)
}
