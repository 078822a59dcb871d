package database

import "time"

// Analysis represents a stored transcript and the report computed from it.
type Analysis struct {
	ID                      string
	Filename                string
	TranscriptSize          int64
	TranscriptHash          string
	TotalUsed               int64
	RequiredFree            int64
	SmallDirectoryTotal     int64
	SmallestSufficient      *int64 // nil when no directory frees enough
	DirectoryCount          int
	FileCount               int
	SmallDirectoryThreshold int64
	CapacityLimit           int64
	UploadedAt              time.Time
	ExpiresAt               time.Time
	ViewCount               int
	PasswordHash            *string // nil when no password set
	DeletionToken           string
	CreatedAt               time.Time
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalAnalyses  int64
	ActiveAnalyses int64
	TotalViews     int64
	StorageUsed    int64
}
