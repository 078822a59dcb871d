package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"treesize/internal/core"
	"treesize/internal/server/config"
	"treesize/internal/server/database"
	"treesize/internal/server/storage"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors for the service layer.
var (
	ErrNotFound           = errors.New("analysis not found")
	ErrExpired            = errors.New("analysis has expired")
	ErrPasswordRequired   = errors.New("password required")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidToken       = errors.New("invalid deletion token")
	ErrTranscriptTooLarge = errors.New("transcript exceeds maximum allowed size")
	ErrNotText            = errors.New("transcript is not valid UTF-8 text")
	ErrInvalidLimits      = errors.New("invalid limits")
)

// Repository is the persistence the service depends on.
type Repository interface {
	Create(ctx context.Context, a *database.Analysis) error
	GetByID(ctx context.Context, id string) (*database.Analysis, error)
	GetByHash(ctx context.Context, hash string) (*database.Analysis, error)
	IncrementViewCount(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// AnalysisResult is returned after a successful upload.
type AnalysisResult struct {
	ID            string       `json:"id"`
	ReportURL     string       `json:"report_url"`
	TreeURL       string       `json:"tree_url"`
	DeletionToken string       `json:"deletion_token"`
	ExpiresAt     time.Time    `json:"expires_at"`
	Filename      string       `json:"filename"`
	Report        *core.Report `json:"report"`
}

// AnalysisInfo is returned for report queries.
type AnalysisInfo struct {
	ID             string       `json:"id"`
	Filename       string       `json:"filename"`
	TranscriptSize int64        `json:"transcript_size"`
	UploadedAt     time.Time    `json:"uploaded_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	ViewCount      int          `json:"view_count"`
	HasPassword    bool         `json:"has_password"`
	Report         *core.Report `json:"report"`
}

// AnalysisService contains the business logic for transcript analyses.
type AnalysisService struct {
	repo  Repository
	store storage.Store
	cfg   *config.Config
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(repo Repository, store storage.Store, cfg *config.Config) *AnalysisService {
	return &AnalysisService{
		repo:  repo,
		store: store,
		cfg:   cfg,
	}
}

// Limits returns the limits used when an upload does not override them.
func (s *AnalysisService) Limits() core.Limits {
	return s.cfg.Limits
}

// ProcessTranscript handles an incoming transcript: validates and analyzes
// it, stores the raw text, and records the report.
func (s *AnalysisService) ProcessTranscript(ctx context.Context, filename string, data io.Reader, size int64, password string, limits core.Limits) (*AnalysisResult, error) {
	if size > s.cfg.MaxTranscriptSize {
		return nil, ErrTranscriptTooLarge
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLimits, err)
	}

	// Read at most one byte past the limit so an understated size is caught.
	hasher := sha256.New()
	tee := io.TeeReader(io.LimitReader(data, s.cfg.MaxTranscriptSize+1), hasher)

	var buf bytes.Buffer
	bytesRead, err := io.Copy(&buf, tee)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	if bytesRead > s.cfg.MaxTranscriptSize {
		return nil, ErrTranscriptTooLarge
	}

	text := buf.Bytes()
	if err := validateText(text); err != nil {
		return nil, err
	}
	transcriptHash := hex.EncodeToString(hasher.Sum(nil))

	_, report, err := core.AnalyzeTranscript(bytes.NewReader(text), limits)
	if err != nil {
		return nil, err
	}

	analysisID, err := generateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis ID: %w", err)
	}

	deletionToken, err := generateSecureToken(24)
	if err != nil {
		return nil, fmt.Errorf("failed to generate deletion token: %w", err)
	}
	deletionToken = "del_" + deletionToken

	// Duplicates are logged, not rejected: limits may differ between uploads.
	existing, _ := s.repo.GetByHash(ctx, transcriptHash)
	if existing != nil {
		slog.Info("duplicate transcript detected",
			"new_analysis", analysisID,
			"existing_analysis", existing.ID,
			"hash", transcriptHash,
		)
	}

	storedBytes, err := s.store.Save(analysisID, bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("failed to store transcript: %w", err)
	}

	var passwordHash *string
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			s.store.Delete(analysisID)
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		passwordHash = &h
	}

	now := time.Now().UTC()
	analysis := &database.Analysis{
		ID:                      analysisID,
		Filename:                sanitizeFilename(filename),
		TranscriptSize:          storedBytes,
		TranscriptHash:          transcriptHash,
		TotalUsed:               report.TotalUsed,
		RequiredFree:            report.RequiredFree,
		SmallDirectoryTotal:     report.SmallDirectoryTotal,
		SmallestSufficient:      report.SmallestSufficient,
		DirectoryCount:          report.Directories,
		FileCount:               report.Files,
		SmallDirectoryThreshold: limits.SmallDirectoryThreshold,
		CapacityLimit:           limits.CapacityLimit,
		UploadedAt:              now,
		ExpiresAt:               now.Add(s.cfg.DefaultExpiry),
		PasswordHash:            passwordHash,
		DeletionToken:           deletionToken,
		CreatedAt:               now,
	}

	if err := s.repo.Create(ctx, analysis); err != nil {
		s.store.Delete(analysisID)
		return nil, fmt.Errorf("failed to create analysis record: %w", err)
	}

	slog.Info("transcript analyzed",
		"id", analysisID,
		"filename", analysis.Filename,
		"transcript_size", storedBytes,
		"directories", report.Directories,
		"total_used", report.TotalUsed,
		"hash", transcriptHash,
	)

	return &AnalysisResult{
		ID:            analysisID,
		ReportURL:     fmt.Sprintf("%s/api/analyses/%s", s.cfg.BaseURL, analysisID),
		TreeURL:       fmt.Sprintf("%s/api/analyses/%s/tree", s.cfg.BaseURL, analysisID),
		DeletionToken: deletionToken,
		ExpiresAt:     analysis.ExpiresAt,
		Filename:      analysis.Filename,
		Report:        report,
	}, nil
}

// GetInfo returns the stored report. Reports are public; the tree and the
// raw transcript are what a password protects.
func (s *AnalysisService) GetInfo(ctx context.Context, id string) (*AnalysisInfo, error) {
	a, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	return &AnalysisInfo{
		ID:             a.ID,
		Filename:       a.Filename,
		TranscriptSize: a.TranscriptSize,
		UploadedAt:     a.UploadedAt,
		ExpiresAt:      a.ExpiresAt,
		ViewCount:      a.ViewCount,
		HasPassword:    a.PasswordHash != nil,
		Report:         reportFromRecord(a),
	}, nil
}

// RenderTree rebuilds the tree from the stored transcript and renders it.
func (s *AnalysisService) RenderTree(ctx context.Context, id string, password string) (string, error) {
	a, err := s.authorize(ctx, id, password)
	if err != nil {
		return "", err
	}

	rc, err := s.store.Open(id)
	if err != nil {
		return "", fmt.Errorf("transcript not found in storage: %w", err)
	}
	defer rc.Close()

	tree, _, err := core.AnalyzeTranscript(rc, limitsFromRecord(a))
	if err != nil {
		return "", fmt.Errorf("failed to rebuild tree: %w", err)
	}

	var b strings.Builder
	if err := tree.Render(&b); err != nil {
		return "", fmt.Errorf("failed to render tree: %w", err)
	}

	s.countView(ctx, id)
	return b.String(), nil
}

// OpenTranscript validates the password (if required) and returns the raw
// transcript along with its original filename.
func (s *AnalysisService) OpenTranscript(ctx context.Context, id string, password string) (io.ReadCloser, string, error) {
	a, err := s.authorize(ctx, id, password)
	if err != nil {
		return nil, "", err
	}

	rc, err := s.store.Open(id)
	if err != nil {
		return nil, "", fmt.Errorf("transcript not found in storage: %w", err)
	}

	s.countView(ctx, id)
	return rc, a.Filename, nil
}

// DeleteAnalysis validates the deletion token and removes the analysis.
func (s *AnalysisService) DeleteAnalysis(ctx context.Context, id string, token string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrAnalysisNotFound) {
			return ErrNotFound
		}
		return err
	}

	if a.DeletionToken != token {
		return ErrInvalidToken
	}

	if err := s.store.Delete(id); err != nil {
		slog.Error("failed to delete transcript from storage", "id", id, "error", err)
		// Continue with DB deletion even if file deletion fails
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete analysis record: %w", err)
	}

	slog.Info("analysis deleted", "id", id, "filename", a.Filename)
	return nil
}

// GetStats returns aggregate server statistics.
func (s *AnalysisService) GetStats(ctx context.Context) (*database.Stats, error) {
	return s.repo.GetStats(ctx)
}

// --- Helpers ---

func (s *AnalysisService) lookup(ctx context.Context, id string) (*database.Analysis, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrAnalysisNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if time.Now().After(a.ExpiresAt) {
		return nil, ErrExpired
	}
	return a, nil
}

func (s *AnalysisService) authorize(ctx context.Context, id string, password string) (*database.Analysis, error) {
	a, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if a.PasswordHash != nil {
		if password == "" {
			return nil, ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*a.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidPassword
		}
	}
	return a, nil
}

// countView is best-effort and never fails the request.
func (s *AnalysisService) countView(ctx context.Context, id string) {
	if err := s.repo.IncrementViewCount(ctx, id); err != nil {
		slog.Error("failed to increment view count", "id", id, "error", err)
	}
}

func limitsFromRecord(a *database.Analysis) core.Limits {
	return core.Limits{
		SmallDirectoryThreshold: a.SmallDirectoryThreshold,
		CapacityLimit:           a.CapacityLimit,
	}
}

func reportFromRecord(a *database.Analysis) *core.Report {
	return &core.Report{
		TotalUsed:           a.TotalUsed,
		RequiredFree:        a.RequiredFree,
		SmallDirectoryTotal: a.SmallDirectoryTotal,
		SmallestSufficient:  a.SmallestSufficient,
		Directories:         a.DirectoryCount,
		Files:               a.FileCount,
		Limits:              limitsFromRecord(a),
	}
}

// generateSecureToken produces a cryptographically secure, URL-safe random string.
func generateSecureToken(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}

// validateText rejects binary uploads before they reach the parser.
func validateText(data []byte) error {
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return ErrNotText
	}
	return nil
}

const maxFilenameBytes = 255

// sanitizeFilename strips directory components and limits length, keeping
// the extension when it is short enough to keep.
func sanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")

	name = filepath.Base(name)

	if len(name) > maxFilenameBytes {
		ext := filepath.Ext(name)
		if len(ext) >= maxFilenameBytes/2 {
			ext = ""
		}
		name = truncateUTF8(name[:len(name)-len(ext)], maxFilenameBytes-len(ext)) + ext
	}

	if name == "" || name == "." || name == "/" {
		name = "transcript.txt"
	}

	return name
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
