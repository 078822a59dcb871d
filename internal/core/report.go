package core

import "io"

// Report holds the answers computed over one finished tree.
type Report struct {
	TotalUsed           int64  `json:"total_used"`
	RequiredFree        int64  `json:"required_free"`
	SmallDirectoryTotal int64  `json:"small_directory_total"`
	SmallestSufficient  *int64 `json:"smallest_sufficient"` // nil when no directory is large enough
	Directories         int    `json:"directories"`
	Files               int    `json:"files"`
	Limits              Limits `json:"limits"`
}

// Analyze runs both size queries over ft. Required free space never goes
// below zero: a tree already within capacity needs nothing freed.
func Analyze(ft *Filetree, limits Limits) *Report {
	sizes := ft.DirectorySizes()
	total := sizes[0]

	required := total - limits.CapacityLimit
	if required < 0 {
		required = 0
	}

	dirs, files := ft.Counts()
	report := &Report{
		TotalUsed:           total,
		RequiredFree:        required,
		SmallDirectoryTotal: SmallDirectoryTotal(sizes, limits.SmallDirectoryThreshold),
		Directories:         dirs,
		Files:               files,
		Limits:              limits,
	}

	if smallest, err := SmallestSufficient(sizes, required); err == nil {
		report.SmallestSufficient = &smallest
	}

	return report
}

// Smallest returns the minimal sufficient directory size, or
// ErrNoSufficientDirectory.
func (r *Report) Smallest() (int64, error) {
	if r.SmallestSufficient == nil {
		return 0, ErrNoSufficientDirectory
	}
	return *r.SmallestSufficient, nil
}

// AnalyzeTranscript parses, replays and analyzes a raw transcript.
func AnalyzeTranscript(r io.Reader, limits Limits) (*Filetree, *Report, error) {
	commands, err := ParseTranscript(r)
	if err != nil {
		return nil, nil, err
	}

	ft, err := BuildFiletree(commands)
	if err != nil {
		return nil, nil, err
	}

	return ft, Analyze(ft, limits), nil
}
