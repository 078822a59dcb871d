package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"treesize/internal/core"
	"treesize/internal/server/config"
	"treesize/internal/server/storage"
	"treesize/internal/testutil"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `$ cd /
$ ls
dir a
14848514 b.txt
8504156 c.dat
dir d
$ cd a
$ ls
dir e
29116 f
2557 g
62596 h.lst
$ cd e
$ ls
584 i
$ cd ..
$ cd ..
$ cd d
$ ls
4060174 j
8033020 d.log
5626152 d.ext
7214296 k
`

// recordingStore remembers which transcripts were saved and deleted.
type recordingStore struct {
	storage.Store
	saved   []string
	deleted []string
}

func (s *recordingStore) Save(id string, data io.Reader) (int64, error) {
	s.saved = append(s.saved, id)
	return s.Store.Save(id, data)
}

func (s *recordingStore) Delete(id string) error {
	s.deleted = append(s.deleted, id)
	return s.Store.Delete(id)
}

func testConfig() *config.Config {
	return &config.Config{
		MaxTranscriptSize: 1024 * 1024,
		DefaultExpiry:     time.Hour,
		BaseURL:           "http://example.test",
		Limits:            core.DefaultLimits(),
	}
}

func newTestService(t *testing.T) (*AnalysisService, *testutil.MemoryRepository, *recordingStore) {
	t.Helper()
	repo := testutil.NewMemoryRepository()
	store := &recordingStore{Store: storage.NewFileSystemStore(memfs.New())}
	return NewAnalysisService(repo, store, testConfig()), repo, store
}

func upload(t *testing.T, svc *AnalysisService, password string) *AnalysisResult {
	t.Helper()
	result, err := svc.ProcessTranscript(context.Background(), "session.log",
		strings.NewReader(sampleTranscript), int64(len(sampleTranscript)), password, svc.Limits())
	require.NoError(t, err)
	return result
}

func readTranscript(t *testing.T, store storage.Store, id string) string {
	t.Helper()
	rc, err := store.Open(id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestProcessTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("analyzes and stores", func(t *testing.T) {
		svc, repo, store := newTestService(t)

		result := upload(t, svc, "")

		assert.Len(t, result.ID, 16)
		assert.True(t, strings.HasPrefix(result.DeletionToken, "del_"))
		assert.Equal(t, "http://example.test/api/analyses/"+result.ID, result.ReportURL)
		assert.Equal(t, "session.log", result.Filename)
		assert.Equal(t, int64(95437), result.Report.SmallDirectoryTotal)
		require.NotNil(t, result.Report.SmallestSufficient)
		assert.Equal(t, int64(24933642), *result.Report.SmallestSufficient)

		record, err := repo.GetByID(ctx, result.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(len(sampleTranscript)), record.TranscriptSize)
		assert.Equal(t, int64(48381165), record.TotalUsed)
		assert.Equal(t, 4, record.DirectoryCount)
		assert.Nil(t, record.PasswordHash)

		assert.Equal(t, sampleTranscript, readTranscript(t, store, result.ID))
	})

	t.Run("custom limits", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		limits := core.Limits{SmallDirectoryThreshold: 1000, CapacityLimit: 70000000}

		result, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader(sampleTranscript), 0, "", limits)

		require.NoError(t, err)
		assert.Equal(t, int64(584), result.Report.SmallDirectoryTotal)
		assert.Equal(t, int64(0), result.Report.RequiredFree)
	})

	t.Run("declared size too large", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader(""), 2*1024*1024, "", svc.Limits())

		assert.ErrorIs(t, err, ErrTranscriptTooLarge)
	})

	t.Run("understated size still too large", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		big := strings.Repeat("$ cd /\n", 200000)

		_, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader(big), 10, "", svc.Limits())

		assert.ErrorIs(t, err, ErrTranscriptTooLarge)
	})

	t.Run("binary data", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.ProcessTranscript(ctx, "t.bin", strings.NewReader("\x00\x01\x02"), 3, "", svc.Limits())

		assert.ErrorIs(t, err, ErrNotText)
	})

	t.Run("malformed transcript stores nothing", func(t *testing.T) {
		svc, repo, store := newTestService(t)

		_, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader("$ cd ghost\n$ ls\n1 f\n"), 0, "", svc.Limits())

		assert.ErrorIs(t, err, core.ErrMalformedTranscript)
		assert.Zero(t, repo.Len())
		assert.Empty(t, store.saved)
	})

	t.Run("invalid limits", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader(sampleTranscript), 0, "",
			core.Limits{SmallDirectoryThreshold: -1})

		assert.ErrorIs(t, err, ErrInvalidLimits)
	})

	t.Run("db failure removes stored transcript", func(t *testing.T) {
		svc, repo, store := newTestService(t)
		repo.CreateErr = errors.New("db down")

		_, err := svc.ProcessTranscript(ctx, "t.txt", strings.NewReader(sampleTranscript), 0, "", svc.Limits())

		require.Error(t, err)
		require.Len(t, store.saved, 1)
		assert.Equal(t, store.saved, store.deleted)
		_, err = store.Open(store.saved[0])
		assert.ErrorIs(t, err, storage.ErrTranscriptNotFound)
	})
}

func TestGetInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored report", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		result := upload(t, svc, "secret")

		info, err := svc.GetInfo(ctx, result.ID)

		require.NoError(t, err)
		assert.True(t, info.HasPassword)
		assert.Equal(t, result.Report, info.Report)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.GetInfo(ctx, "missing")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		result := upload(t, svc, "")
		repo.Record(result.ID).ExpiresAt = time.Now().Add(-time.Minute)

		_, err := svc.GetInfo(ctx, result.ID)

		assert.ErrorIs(t, err, ErrExpired)
	})
}

func TestRenderTree(t *testing.T) {
	ctx := context.Background()

	t.Run("open analysis", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		result := upload(t, svc, "")

		tree, err := svc.RenderTree(ctx, result.ID, "")

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(tree, "- / (dir, size=48381165)\n"))
		assert.Contains(t, tree, "    - e (dir, size=584)\n")
		assert.Equal(t, 1, repo.Record(result.ID).ViewCount)
	})

	t.Run("password protected", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		result := upload(t, svc, "secret")

		_, err := svc.RenderTree(ctx, result.ID, "")
		assert.ErrorIs(t, err, ErrPasswordRequired)

		_, err = svc.RenderTree(ctx, result.ID, "wrong")
		assert.ErrorIs(t, err, ErrInvalidPassword)

		tree, err := svc.RenderTree(ctx, result.ID, "secret")
		require.NoError(t, err)
		assert.NotEmpty(t, tree)
	})
}

func TestOpenTranscript(t *testing.T) {
	svc, repo, _ := newTestService(t)
	result := upload(t, svc, "")

	rc, filename, err := svc.OpenTranscript(context.Background(), result.ID, "")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, sampleTranscript, string(data))
	assert.Equal(t, "session.log", filename)
	assert.Equal(t, 1, repo.Record(result.ID).ViewCount)
}

func TestDeleteAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong token", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		result := upload(t, svc, "")

		err := svc.DeleteAnalysis(ctx, result.ID, "del_nope")

		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("removes record and transcript", func(t *testing.T) {
		svc, repo, store := newTestService(t)
		result := upload(t, svc, "")

		require.NoError(t, svc.DeleteAnalysis(ctx, result.ID, result.DeletionToken))

		assert.Zero(t, repo.Len())
		_, err := store.Open(result.ID)
		assert.ErrorIs(t, err, storage.ErrTranscriptNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		assert.ErrorIs(t, svc.DeleteAnalysis(ctx, "missing", "del_x"), ErrNotFound)
	})
}

func TestGetStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	upload(t, svc, "")
	upload(t, svc, "")

	stats, err := svc.GetStats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalAnalyses)
	assert.Equal(t, int64(2*len(sampleTranscript)), stats.StorageUsed)
}
