package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rubywatch/release-index/internal/metrics"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
)

// downloadLatestArtifact redirects to the source tarball of the most recent
// release in the requested series.
func (s *Server) downloadLatestArtifact(w http.ResponseWriter, r *http.Request) {
	series := chi.URLParam(r, "series")
	if series == "" {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("missing series"))
		return
	}

	report, err := s.getLatestReleases(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not get latest releases")
		return
	}

	for _, rel := range report {
		if rel.Series() != series {
			continue
		}
		ctx, _ := tag.New(r.Context(), tag.Upsert(metrics.TagSeries, series))
		stats.Record(ctx, metrics.CounterArtifactDownloads.M(1))
		http.Redirect(w, r, rel.URL, http.StatusFound)
		return
	}
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("could not find a release for series %s", series))
}
