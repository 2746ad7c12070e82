package index

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Release is one entry of the Ruby source release index. The checksum is
// carried through as-is and never verified.
type Release struct {
	Version *semver.Version `json:"version"`
	URL     string          `json:"url"`
	SHA256  string          `json:"sha256"`
}

// Series returns the minor release line a release belongs to, e.g. "3.2".
func (r *Release) Series() string {
	return fmt.Sprintf("%d.%d", r.Version.Major(), r.Version.Minor())
}
