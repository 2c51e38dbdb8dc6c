// Package guard builds device digests and records draw attempts to the
// audit ledger. It is strictly a detection aid: nothing in the draw path
// reads its output, and none of its failures may abort a draw.
package guard

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Signals is the fixed tuple of environment hints the client reports.
// Any subset may be empty; a sparse tuple just yields a lower-fidelity
// digest.
type Signals struct {
	UserAgent string  `json:"userAgent,omitempty"`
	Locale    string  `json:"locale,omitempty"`
	Platform  string  `json:"platform,omitempty"`
	Screen    string  `json:"screen,omitempty"`
	Timezone  string  `json:"timezone,omitempty"`
	CanvasSig string  `json:"canvasSig,omitempty"`
	MemoryGB  float64 `json:"memoryGb,omitempty"`
	CPUCores  int     `json:"cpuCores,omitempty"`
}

// Digest hashes the signal tuple into a short stable token. The same
// signals always produce the same digest; field order is fixed so partial
// tuples stay comparable across attempts.
func Digest(s Signals) string {
	parts := []string{
		s.UserAgent,
		s.Locale,
		s.Platform,
		s.Screen,
		s.Timezone,
		s.CanvasSig,
		strconv.FormatFloat(s.MemoryGB, 'g', -1, 64),
		strconv.Itoa(s.CPUCores),
	}
	sum := xxhash.Sum64String(strings.Join(parts, "|"))
	return fmt.Sprintf("%016x", sum)
}
