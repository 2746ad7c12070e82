package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rubywatch/release-index/internal/metrics"
	"github.com/rubywatch/release-index/internal/release"
	"github.com/rubywatch/release-index/pkg/index"
	"go.opencensus.io/stats"
)

// getLatestReleases returns the report of the latest release per minor line,
// rebuilding it from a fresh feed fetch when it is not cached. Fetches are
// serialized so concurrent requests cannot stampede the upstream server.
func (s *Server) getLatestReleases(ctx context.Context) ([]*index.Release, error) {
	reportCacheKey := s.getCacheKeyWithPrefix(cacheKeyPrefixFeed, "report")
	if cachedReport, ok := s.getFromCache(ctx, reportCacheKey); ok {
		return cachedReport.([]*index.Release), nil
	}

	err := s.feedSemaphore.Acquire(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("could not acquire semaphore")
	}
	defer s.feedSemaphore.Release(1)

	// another request might have rebuilt the report while we were waiting
	if cachedReport, ok := s.getFromCache(ctx, reportCacheKey); ok {
		return cachedReport.([]*index.Release), nil
	}

	data, err := s.feed.Fetch(ctx, s.config.IndexURL)
	if err != nil {
		return nil, err
	}
	stats.Record(ctx, metrics.CounterIndexFetches.M(1))

	releases, err := release.Parse(data)
	if err != nil {
		return nil, err
	}
	report := release.Latest(release.Filter(releases))
	s.setInCache(ctx, reportCacheKey, report)
	return report, nil
}

func (s *Server) listReleases(w http.ResponseWriter, r *http.Request) {
	report, err := s.getLatestReleases(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not build release report")
		return
	}

	s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), report)
	s.writeJSON(w, report)
}

func (s *Server) getRelease(w http.ResponseWriter, r *http.Request) {
	series := chi.URLParam(r, "series")
	if series == "" {
		s.writeJSONError(w, r, http.StatusBadRequest, fmt.Errorf("series is missing"))
		return
	}

	report, err := s.getLatestReleases(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not build release report")
		return
	}
	for _, rel := range report {
		if rel.Series() == series {
			s.setInCache(r.Context(), s.getCacheKeyFromRequest(r), rel)
			s.writeJSON(w, rel)
			return
		}
	}
	s.writeJSONError(w, r, http.StatusNotFound, fmt.Errorf("release series %s not found", series))
}

func (s *Server) refreshReleases(w http.ResponseWriter, r *http.Request) {
	reqLogger := s.requestLogger(r)
	reqLogger.Warn("rebuilding release report...")

	s.invalidateByPrefix(s.getCacheKeyWithPrefix(cacheKeyPrefixFeed, ""))
	s.invalidateByPrefix(s.getReleasesCacheKeyPrefix())

	report, err := s.getLatestReleases(r.Context())
	if err != nil {
		s.writeJSONError(w, r, http.StatusInternalServerError, err, "could not rebuild release report")
		return
	}

	reqLogger.Infof("release report has %d series", len(report))
	s.writeJSON(w, map[string]bool{"ok": true})
}
