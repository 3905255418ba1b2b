// Package storage exports finished scan results to SQLite.
//
// The export is write-only from the analyzer's point of view: analyze writes
// one scan row and its entities after a document is fully processed and never
// reads them back. Review tooling and tests read them with GetScan,
// ListScans and ListEntities.
//
// # Database Schema
//
// Tables:
//   - scans: one row per analyzed document (path, SHA-256, chunk size, engine)
//   - entities: the hits of a scan, in output order
//   - schema_version: applied migrations
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("scans.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	scan := &storage.Scan{
//	    FilePath:    "brief.txt",
//	    ContentHash: sha256.Sum256(content),
//	    ChunkSize:   100000,
//	    Engine:      "regex",
//	}
//	if err := db.SaveScan(ctx, scan, hits); err != nil {
//	    return err
//	}
//
// SaveScan writes the scan and all entities in one transaction.
//
// # Drivers
//
// The default build uses modernc.org/sqlite (pure Go). Building with the
// sqlite_cgo tag switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// Schema versions are semantic versions compared with Masterminds/semver.
// NewSQLiteStorage applies every migration newer than the recorded version.
package storage
