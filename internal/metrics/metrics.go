package metrics

import (
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/rubywatch/release-index/internal/config"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterIndexFetches      = stats.Int64("index_fetches", "Number of release index fetches", "1")
	CounterArtifactDownloads = stats.Int64("artifact_downloads", "Number of artifact download redirects", "1")
	CounterCacheHit          = stats.Int64("cache_hits", "Number of cache hits", "1")
	CounterCacheMiss         = stats.Int64("cache_misses", "Number of cache misses", "1")

	TagSeries   = tag.MustNewKey("series")
	TagCacheKey = tag.MustNewKey("cache_key")
)

var views = []*view.View{
	{
		Name:        "index_fetches",
		Measure:     CounterIndexFetches,
		Description: "Number of release index fetches",
		Aggregation: view.Count(),
	},
	{
		Name:        "artifact_downloads",
		Measure:     CounterArtifactDownloads,
		Description: "Number of artifact download redirects",
		TagKeys:     []tag.Key{TagSeries},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_hits",
		Measure:     CounterCacheHit,
		Description: "Number of cache hits",
		TagKeys:     []tag.Key{TagCacheKey},
		Aggregation: view.Count(),
	},
	{
		Name:        "cache_misses",
		Measure:     CounterCacheMiss,
		Description: "Number of cache misses",
		TagKeys:     []tag.Key{TagCacheKey},
		Aggregation: view.Count(),
	},
}

func NewExporter(cfg *config.ServerConfig) (*stackdriver.Exporter, error) {
	err := view.Register(views...)
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.ProjectID,
		MetricPrefix: fmt.Sprintf("release-index/%s", cfg.Stage),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}
