package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

var ErrTranscriptNotFound = errors.New("transcript not found")

// Store defines the interface for transcript storage backends.
type Store interface {
	Save(analysisID string, data io.Reader) (int64, error)
	Open(analysisID string) (io.ReadCloser, error)
	Delete(analysisID string) error
	EnsureDir() error
}

// FileSystemStore keeps raw transcripts as {analysisID}.txt on a billy
// filesystem: osfs in production, memfs in tests.
type FileSystemStore struct {
	fs billy.Filesystem
}

// NewFileSystemStore creates a store rooted at the top of fs.
func NewFileSystemStore(fs billy.Filesystem) *FileSystemStore {
	return &FileSystemStore{fs: fs}
}

// NewOSStore creates a store rooted at basePath on the local disk.
func NewOSStore(basePath string) *FileSystemStore {
	return NewFileSystemStore(osfs.New(basePath))
}

// EnsureDir creates the storage root if it doesn't exist.
func (s *FileSystemStore) EnsureDir() error {
	if err := s.fs.MkdirAll(".", 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", s.fs.Root(), err)
	}
	return nil
}

// Save writes data to the transcript file for analysisID.
// Returns the number of bytes written.
func (s *FileSystemStore) Save(analysisID string, data io.Reader) (int64, error) {
	name := fileName(analysisID)

	file, err := s.fs.Create(name)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", name, err)
	}
	defer file.Close()

	n, err := io.Copy(file, data)
	if err != nil {
		// Clean up partial file on error
		s.fs.Remove(name)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	return n, nil
}

// Open returns a reader for a stored transcript.
func (s *FileSystemStore) Open(analysisID string) (io.ReadCloser, error) {
	file, err := s.fs.Open(fileName(analysisID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTranscriptNotFound, analysisID)
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	return file, nil
}

// Delete removes the stored transcript. Deleting a missing transcript is not
// an error.
func (s *FileSystemStore) Delete(analysisID string) error {
	name := fileName(analysisID)
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}
	return nil
}

func fileName(analysisID string) string {
	return analysisID + ".txt"
}
