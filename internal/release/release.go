package release

import (
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rubywatch/release-index/pkg/index"
)

// Only stable releases of the supported major line qualify for the report.
// The bound guards against pathological version numbers in the feed.
const (
	RegularMajor = 3
	RegularBound = 99
)

const (
	namePrefix     = "ruby-"
	artifactSuffix = ".tar.gz"
	secureScheme   = "https://"
)

// required columns of the index header
const (
	columnName   = "name"
	columnURL    = "url"
	columnSHA256 = "sha256"
)

type columnMap struct {
	name   int
	url    int
	sha256 int
	fields int
}

func mapColumns(header []string) (*columnMap, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	cm := &columnMap{fields: len(header)}
	var ok bool
	if cm.name, ok = columns[columnName]; !ok {
		return nil, fmt.Errorf("index header is missing the %s column", columnName)
	}
	if cm.url, ok = columns[columnURL]; !ok {
		return nil, fmt.Errorf("index header is missing the %s column", columnURL)
	}
	if cm.sha256, ok = columns[columnSHA256]; !ok {
		return nil, fmt.Errorf("index header is missing the %s column", columnSHA256)
	}
	return cm, nil
}

// Parse reads the tab-separated release index into typed records. The feed is
// semi-trusted: rows that do not describe a release tarball are skipped, the
// parse only fails if no usable header can be established.
func Parse(data string) ([]*index.Release, error) {
	reader := csv.NewReader(strings.NewReader(data))
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read release index: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("release index is empty")
	}
	columns, err := mapColumns(rows[0])
	if err != nil {
		return nil, err
	}

	releases := make([]*index.Release, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != columns.fields {
			continue
		}
		name, ok := strings.CutPrefix(row[columns.name], namePrefix)
		if !ok {
			continue
		}
		version, err := semver.StrictNewVersion(name)
		if err != nil {
			continue
		}
		releases = append(releases, &index.Release{
			Version: version,
			URL:     row[columns.url],
			SHA256:  row[columns.sha256],
		})
	}
	return releases, nil
}

func isRegularVersion(v *semver.Version) bool {
	if v.Major() != RegularMajor {
		return false
	}
	if v.Minor() >= RegularBound || v.Patch() >= RegularBound {
		return false
	}
	return v.Prerelease() == "" && v.Metadata() == ""
}

func isSourceTarball(url string) bool {
	return strings.HasPrefix(url, secureScheme) && strings.HasSuffix(url, artifactSuffix)
}

// Valid reports whether a release is a regular release of the supported major
// line that points at a source tarball on a secure URL.
func Valid(r *index.Release) bool {
	return isRegularVersion(r.Version) && isSourceTarball(r.URL)
}

// Filter returns the releases that pass Valid, in input order.
func Filter(releases []*index.Release) []*index.Release {
	filtered := make([]*index.Release, 0, len(releases))
	for _, r := range releases {
		if Valid(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Latest reduces a set of valid releases to the most recent release of every
// minor line, ordered by ascending minor version. The minor domain is a small
// bounded range, so each line is scanned directly instead of sorting the
// input. Of two releases with an identical version the later one wins.
func Latest(releases []*index.Release) []*index.Release {
	latest := make([]*index.Release, 0)
	for minor := uint64(0); minor < RegularBound; minor++ {
		var best *index.Release
		for _, r := range releases {
			if r.Version.Minor() != minor {
				continue
			}
			if best == nil || r.Version.Compare(best.Version) >= 0 {
				best = r
			}
		}
		if best != nil {
			latest = append(latest, best)
		}
	}
	return latest
}
