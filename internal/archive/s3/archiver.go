package s3archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cryptarena/arenad/internal/domain"
)

// Snapshot is the durable record of one settled arena: the arena row plus
// every per-slot rollup, player entry, and escrow journal line. One snapshot
// per arena, written once the arena reaches a terminal status.
type Snapshot struct {
	Arena      domain.Arena            `json:"arena"`
	Aggregates []domain.AssetAggregate `json:"aggregates"`
	Entries    []domain.PlayerEntry    `json:"entries"`
	Transfers  []domain.Transfer       `json:"transfers"`
	ArchivedAt time.Time               `json:"archived_at"`
}

// Archiver uploads snapshots of ended and cancelled arenas to the archive
// bucket. Uploads are idempotent: an arena already present in the bucket is
// skipped, so the sweep loop can run as often as it likes.
type Archiver struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	ledger   domain.LedgerReader
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver. interval controls the sweep cadence in
// Run; ArchiveArena can be called directly regardless.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	ledger domain.LedgerReader,
	interval time.Duration,
	logger *slog.Logger,
) *Archiver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Archiver{
		writer:   writer,
		reader:   reader,
		ledger:   ledger,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// snapshotPath builds the bucket key for one arena snapshot.
//
//	arenas/42.json
func snapshotPath(arenaID int64) string {
	return fmt.Sprintf("arenas/%d.json", arenaID)
}

// ArchiveArena uploads the snapshot for one terminal arena and returns the
// bucket key. Non-terminal arenas are rejected; their entries and transfers
// are still changing.
func (a *Archiver) ArchiveArena(ctx context.Context, arenaID int64) (string, error) {
	arena, err := a.ledger.GetArena(ctx, arenaID)
	if err != nil {
		return "", fmt.Errorf("s3archive: load arena %d: %w", arenaID, err)
	}
	if arena.Status != domain.ArenaEnded && arena.Status != domain.ArenaCancelled {
		return "", fmt.Errorf("s3archive: arena %d is %s: %w", arenaID, arena.Status, domain.ErrArenaNotEnded)
	}

	aggs, err := a.ledger.GetAssetAggregates(ctx, arenaID)
	if err != nil {
		return "", fmt.Errorf("s3archive: load aggregates for arena %d: %w", arenaID, err)
	}
	entries, err := a.ledger.GetEntries(ctx, arenaID)
	if err != nil {
		return "", fmt.Errorf("s3archive: load entries for arena %d: %w", arenaID, err)
	}
	transfers, err := a.ledger.GetTransfers(ctx, arenaID)
	if err != nil {
		return "", fmt.Errorf("s3archive: load transfers for arena %d: %w", arenaID, err)
	}

	snap := Snapshot{
		Arena:      arena,
		Aggregates: aggs,
		Entries:    entries,
		Transfers:  transfers,
		ArchivedAt: time.Now().UTC(),
	}

	buf, err := marshalSnapshot(snap)
	if err != nil {
		return "", fmt.Errorf("s3archive: marshal arena %d: %w", arenaID, err)
	}

	path := snapshotPath(arenaID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return "", fmt.Errorf("s3archive: upload arena %d: %w", arenaID, err)
	}

	a.logger.Info("archiver: arena archived",
		slog.Int64("arena_id", arenaID),
		slog.String("path", path),
		slog.Int("entries", len(entries)),
		slog.Int("transfers", len(transfers)),
	)
	return path, nil
}

// Run sweeps for unarchived terminal arenas on a fixed interval until the
// context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver: starting", slog.Duration("interval", a.interval))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver: stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := a.sweep(ctx); err != nil {
				a.logger.Error("archiver: sweep failed", slog.Any("error", err))
			}
		}
	}
}

// sweep archives every terminal arena that is not yet in the bucket.
func (a *Archiver) sweep(ctx context.Context) error {
	arenas, err := a.ledger.GetArenasByStatus(ctx, domain.ArenaEnded, domain.ArenaCancelled)
	if err != nil {
		return fmt.Errorf("s3archive: list terminal arenas: %w", err)
	}

	for _, arena := range arenas {
		exists, err := a.reader.Exists(ctx, snapshotPath(arena.ID))
		if err != nil {
			a.logger.Warn("archiver: existence check failed",
				slog.Int64("arena_id", arena.ID),
				slog.Any("error", err),
			)
			continue
		}
		if exists {
			continue
		}
		if _, err := a.ArchiveArena(ctx, arena.ID); err != nil {
			a.logger.Error("archiver: archive failed",
				slog.Int64("arena_id", arena.ID),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

// marshalSnapshot serialises a snapshot as compact JSON.
func marshalSnapshot(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}
