package storage

import (
	"context"
	"time"

	"github.com/dshills/entityscan/pkg/types"
)

// Storage persists finished scans for review tooling
type Storage interface {
	// Scan operations
	SaveScan(ctx context.Context, scan *Scan, hits []types.EntityHit) error
	GetScan(ctx context.Context, scanID int64) (*Scan, error)
	GetLatestScan(ctx context.Context, filePath string) (*Scan, error)
	ListScans(ctx context.Context, limit int) ([]*Scan, error)
	DeleteScan(ctx context.Context, scanID int64) error

	// Entity operations
	ListEntities(ctx context.Context, scanID int64) ([]types.EntityHit, error)
	CountEntitiesByLabel(ctx context.Context, scanID int64) (map[string]int, error)

	// Database operations
	Close() error
}

// Scan is one analyzed document
type Scan struct {
	ID            int64
	FilePath      string
	ContentHash   [32]byte // SHA-256 of the document bytes
	SizeBytes     int64
	ChunkSize     int
	Engine        string
	EntityCount   int
	ChunkCount    int
	SkippedChunks int
	Duration      time.Duration
	CreatedAt     time.Time
}
