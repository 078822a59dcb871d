package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Run("example", func(t *testing.T) {
		report := Analyze(buildExampleTree(t), DefaultLimits())

		assert.Equal(t, int64(48381165), report.TotalUsed)
		assert.Equal(t, int64(8381165), report.RequiredFree)
		assert.Equal(t, int64(95437), report.SmallDirectoryTotal)
		require.NotNil(t, report.SmallestSufficient)
		assert.Equal(t, int64(24933642), *report.SmallestSufficient)
		assert.Equal(t, 4, report.Directories)
		assert.Equal(t, 10, report.Files)
		assert.Equal(t, DefaultLimits(), report.Limits)
	})

	t.Run("within capacity needs nothing freed", func(t *testing.T) {
		report := Analyze(buildExampleTree(t), Limits{SmallDirectoryThreshold: 0, CapacityLimit: 50000000})

		assert.Equal(t, int64(0), report.RequiredFree)
		smallest, err := report.Smallest()
		require.NoError(t, err)
		assert.Equal(t, int64(584), smallest)
	})

	t.Run("empty tree", func(t *testing.T) {
		tree, err := BuildFiletree(nil)
		require.NoError(t, err)

		report := Analyze(tree, DefaultLimits())

		assert.Equal(t, int64(0), report.TotalUsed)
		assert.Equal(t, int64(0), report.SmallDirectoryTotal)
		assert.Equal(t, 1, report.Directories)
		assert.Equal(t, 0, report.Files)
	})
}

func TestReport_Smallest(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		report := &Report{}
		_, err := report.Smallest()
		assert.ErrorIs(t, err, ErrNoSufficientDirectory)
	})
}

func TestAnalyzeTranscript(t *testing.T) {
	t.Run("example", func(t *testing.T) {
		tree, report, err := AnalyzeTranscript(strings.NewReader(exampleTranscript), DefaultLimits())

		require.NoError(t, err)
		assert.NotNil(t, tree)
		assert.Equal(t, int64(95437), report.SmallDirectoryTotal)
	})

	t.Run("parse error", func(t *testing.T) {
		_, _, err := AnalyzeTranscript(strings.NewReader("$ pwd"), DefaultLimits())
		assertTranscriptError(t, err)
	})

	t.Run("replay error", func(t *testing.T) {
		_, _, err := AnalyzeTranscript(strings.NewReader("$ cd nowhere\n$ ls"), DefaultLimits())
		te := assertTranscriptError(t, err)
		assert.Equal(t, 2, te.Command)
	})

	t.Run("total too large to represent", func(t *testing.T) {
		in := "$ cd /\n$ ls\n9223372036854775807 a\n9223372036854775807 b\n"

		tree, report, err := AnalyzeTranscript(strings.NewReader(in), DefaultLimits())

		assert.Nil(t, tree)
		assert.Nil(t, report)
		te := assertTranscriptError(t, err)
		assert.Equal(t, "/", te.Path)
	})
}

func TestLimits(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		limits := DefaultLimits()
		assert.Equal(t, int64(100000), limits.SmallDirectoryThreshold)
		assert.Equal(t, int64(40000000), limits.CapacityLimit)
		assert.NoError(t, limits.Validate())
	})

	t.Run("partial overlay keeps base values", func(t *testing.T) {
		limits, err := ParseLimits([]byte("capacity_limit: 123\n"), DefaultLimits())

		require.NoError(t, err)
		assert.Equal(t, int64(123), limits.CapacityLimit)
		assert.Equal(t, DefaultSmallDirectoryThreshold, limits.SmallDirectoryThreshold)
	})

	t.Run("negative values rejected", func(t *testing.T) {
		limits, err := ParseLimits([]byte("small_directory_threshold: -1\n"), DefaultLimits())

		assert.Error(t, err)
		assert.Equal(t, DefaultLimits(), limits)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseLimits([]byte("capacity_limit: [1"), DefaultLimits())
		assert.Error(t, err)
	})

	t.Run("load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "limits.yaml")
		require.NoError(t, os.WriteFile(path, []byte("small_directory_threshold: 500\ncapacity_limit: 1000\n"), 0644))

		limits, err := LoadLimits(path, DefaultLimits())

		require.NoError(t, err)
		assert.Equal(t, Limits{SmallDirectoryThreshold: 500, CapacityLimit: 1000}, limits)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadLimits(filepath.Join(t.TempDir(), "nope.yaml"), DefaultLimits())
		assert.Error(t, err)
	})
}

func TestFiletree_Render(t *testing.T) {
	var b strings.Builder
	require.NoError(t, buildExampleTree(t).Render(&b))

	want := `- / (dir, size=48381165)
  - a (dir, size=94853)
    - e (dir, size=584)
      - i (file, size=584)
    - f (file, size=29116)
    - g (file, size=2557)
    - h.lst (file, size=62596)
  - b.txt (file, size=14848514)
  - c.dat (file, size=8504156)
  - d (dir, size=24933642)
    - d.ext (file, size=5626152)
    - d.log (file, size=8033020)
    - j (file, size=4060174)
    - k (file, size=7214296)
`
	assert.Equal(t, want, b.String())
}
