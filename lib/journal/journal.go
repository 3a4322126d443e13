// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/lull/lib/sealed"
	"github.com/bureau-foundation/lull/lib/sqlitepool"
)

// DefaultCompressionThreshold is the payload size, in bytes, at which
// compression is attempted when Config.CompressionThreshold is zero.
const DefaultCompressionThreshold = 256

var (
	// ErrSequenceConflict is returned by Append when the record's
	// sequence number is not exactly one past the instance's last
	// record. Two writers driving the same instance fence each other
	// through this check.
	ErrSequenceConflict = errors.New("journal: sequence conflict")

	// ErrInstanceExists is returned by Append for a seq 1 record when
	// the instance already has history.
	ErrInstanceExists = errors.New("journal: instance already exists")

	// ErrTerminated is returned by Append when the instance already
	// has a terminal record.
	ErrTerminated = errors.New("journal: instance is terminated")

	// ErrNotFound is returned by Load for an instance with no records.
	ErrNotFound = errors.New("journal: instance not found")
)

// Record is one state transition of one instance.
type Record struct {
	InstanceID string
	Seq        uint64
	Kind       string
	RecordedAt time.Time

	// Payload is the plaintext event payload. Compression and sealing
	// are applied by the journal and are invisible to callers.
	Payload []byte

	// Terminal marks the instance as finished. No record may follow a
	// terminal record, and Prune only removes terminated instances.
	Terminal bool
}

// Instance summarizes one instance's history.
type Instance struct {
	ID        string
	CreatedAt time.Time

	// TerminatedAt is zero while the instance is live.
	TerminatedAt time.Time

	// Records is the number of records in the instance's history.
	Records int
}

// Terminated reports whether the instance has a terminal record.
func (i Instance) Terminated() bool { return !i.TerminatedAt.IsZero() }

// CorruptionError reports history that cannot be trusted: a gap in the
// sequence, a chain hash mismatch, or a payload that cannot be
// decoded.
type CorruptionError struct {
	InstanceID string
	Seq        uint64
	Reason     string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("journal: instance %q record %d: %s", e.InstanceID, e.Seq, e.Reason)
}

// Config holds the parameters for opening a journal.
type Config struct {
	// Path is the SQLite database file. Its directory must exist.
	Path string

	// PoolSize defaults to 4.
	PoolSize int

	// Synchronous defaults to sqlitepool.SynchronousFull. The journal
	// is the only copy of buffered messages, so relaxing this trades
	// durability for write latency.
	Synchronous sqlitepool.Synchronous

	// Compression applies to payloads of at least
	// CompressionThreshold bytes. The zero value is CompressionNone.
	Compression          CompressionTag
	CompressionThreshold int

	// Sealer, when set, encrypts every payload at rest. Loading a
	// sealed record without a Sealer that can open it is reported as
	// corruption.
	Sealer *sealed.Sealer

	Logger *slog.Logger
}

// Journal is an append-only transition log backed by SQLite. It is
// safe for concurrent use.
type Journal struct {
	pool        *sqlitepool.Pool
	logger      *slog.Logger
	compression CompressionTag
	threshold   int
	sealer      *sealed.Sealer
}

const schema = `
CREATE TABLE IF NOT EXISTS instances (
	instance_id   TEXT PRIMARY KEY,
	created_at    INTEGER NOT NULL,
	terminated_at INTEGER
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS instances_terminated
	ON instances (terminated_at) WHERE terminated_at IS NOT NULL;

CREATE TABLE IF NOT EXISTS records (
	instance_id  TEXT NOT NULL REFERENCES instances (instance_id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	kind         TEXT NOT NULL,
	recorded_at  INTEGER NOT NULL,
	terminal     INTEGER NOT NULL,
	compression  INTEGER NOT NULL,
	sealed       INTEGER NOT NULL,
	payload_size INTEGER NOT NULL,
	payload      BLOB,
	chain_hash   BLOB NOT NULL,
	PRIMARY KEY (instance_id, seq)
) WITHOUT ROWID;
`

// Open opens or creates the journal at cfg.Path.
func Open(cfg Config) (*Journal, error) {
	switch cfg.Compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("journal: unsupported compression %s", cfg.Compression)
	}
	threshold := cfg.CompressionThreshold
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:        cfg.Path,
		PoolSize:    cfg.PoolSize,
		Synchronous: cfg.Synchronous,
		Logger:      logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	return &Journal{
		pool:        pool,
		logger:      logger,
		compression: cfg.Compression,
		threshold:   threshold,
		sealer:      cfg.Sealer,
	}, nil
}

// Close closes the underlying pool.
func (j *Journal) Close() error {
	return j.pool.Close()
}

// Append durably writes record as the next entry of its instance. The
// write happens in an IMMEDIATE transaction: the sequence check, the
// chain link, and the insert are atomic with respect to other writers.
func (j *Journal) Append(ctx context.Context, record Record) (err error) {
	if record.InstanceID == "" {
		return fmt.Errorf("journal: append: empty instance ID")
	}
	if record.Seq == 0 {
		return fmt.Errorf("journal: append: sequence numbers start at 1")
	}

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	defer j.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("journal: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	var (
		exists     bool
		terminated bool
	)
	err = sqlitex.Execute(conn,
		"SELECT terminated_at IS NOT NULL FROM instances WHERE instance_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{record.InstanceID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				exists = true
				terminated = stmt.ColumnBool(0)
				return nil
			},
		})
	if err != nil {
		return fmt.Errorf("journal: reading instance %q: %w", record.InstanceID, err)
	}

	var previous Hash
	if record.Seq == 1 {
		if exists {
			return fmt.Errorf("%w: %q", ErrInstanceExists, record.InstanceID)
		}
		err = sqlitex.Execute(conn,
			"INSERT INTO instances (instance_id, created_at) VALUES (?, ?)",
			&sqlitex.ExecOptions{Args: []any{record.InstanceID, record.RecordedAt.UnixNano()}})
		if err != nil {
			return fmt.Errorf("journal: creating instance %q: %w", record.InstanceID, err)
		}
	} else {
		if !exists {
			return fmt.Errorf("%w: instance %q has no history, got seq %d", ErrSequenceConflict, record.InstanceID, record.Seq)
		}
		if terminated {
			return fmt.Errorf("%w: %q", ErrTerminated, record.InstanceID)
		}
		lastSeq, lastHash, lookupErr := lastRecord(conn, record.InstanceID)
		if lookupErr != nil {
			return lookupErr
		}
		if record.Seq != lastSeq+1 {
			return fmt.Errorf("%w: instance %q is at seq %d, got %d", ErrSequenceConflict, record.InstanceID, lastSeq, record.Seq)
		}
		previous = lastHash
	}

	hash := chainHash(previous, &record)

	stored, tag, err := compressPayload(record.Payload, j.compression, j.threshold)
	if err != nil {
		return fmt.Errorf("journal: compressing payload: %w", err)
	}
	isSealed := false
	if j.sealer != nil {
		stored, err = j.sealer.Seal(stored)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		isSealed = true
	}

	err = sqlitex.Execute(conn,
		`INSERT INTO records
			(instance_id, seq, kind, recorded_at, terminal, compression, sealed, payload_size, payload, chain_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.InstanceID,
			int64(record.Seq),
			record.Kind,
			record.RecordedAt.UnixNano(),
			record.Terminal,
			int64(tag),
			isSealed,
			len(record.Payload),
			stored,
			hash[:],
		}})
	if err != nil {
		return fmt.Errorf("journal: inserting record %d of %q: %w", record.Seq, record.InstanceID, err)
	}

	if record.Terminal {
		err = sqlitex.Execute(conn,
			"UPDATE instances SET terminated_at = ? WHERE instance_id = ?",
			&sqlitex.ExecOptions{Args: []any{record.RecordedAt.UnixNano(), record.InstanceID}})
		if err != nil {
			return fmt.Errorf("journal: terminating %q: %w", record.InstanceID, err)
		}
	}
	return nil
}

func lastRecord(conn *sqlite.Conn, instanceID string) (uint64, Hash, error) {
	var (
		seq  uint64
		hash Hash
	)
	err := sqlitex.Execute(conn,
		"SELECT seq, chain_hash FROM records WHERE instance_id = ? ORDER BY seq DESC LIMIT 1",
		&sqlitex.ExecOptions{
			Args: []any{instanceID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				seq = uint64(stmt.ColumnInt64(0))
				stmt.ColumnBytes(1, hash[:])
				return nil
			},
		})
	if err != nil {
		return 0, Hash{}, fmt.Errorf("journal: reading last record of %q: %w", instanceID, err)
	}
	return seq, hash, nil
}

// storedRecord is a records row before verification.
type storedRecord struct {
	record      Record
	compression CompressionTag
	sealed      bool
	size        int
	payload     []byte
	hash        Hash
	hashLength  int
}

// Load returns the full history of an instance in sequence order,
// decoded and verified. A gap in the sequence or a broken hash chain is
// reported as *CorruptionError; no records are returned in that case.
func (j *Journal) Load(ctx context.Context, instanceID string) ([]Record, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: load: %w", err)
	}
	defer j.pool.Put(conn)

	var rows []storedRecord
	err = sqlitex.Execute(conn,
		`SELECT seq, kind, recorded_at, terminal, compression, sealed, payload_size, payload, chain_hash
		 FROM records WHERE instance_id = ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{instanceID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row := storedRecord{
					record: Record{
						InstanceID: instanceID,
						Seq:        uint64(stmt.ColumnInt64(0)),
						Kind:       stmt.ColumnText(1),
						RecordedAt: time.Unix(0, stmt.ColumnInt64(2)).UTC(),
						Terminal:   stmt.ColumnBool(3),
					},
					compression: CompressionTag(stmt.ColumnInt(4)),
					sealed:      stmt.ColumnBool(5),
					size:        stmt.ColumnInt(6),
					payload:     make([]byte, stmt.ColumnLen(7)),
					hashLength:  stmt.ColumnLen(8),
				}
				stmt.ColumnBytes(7, row.payload)
				stmt.ColumnBytes(8, row.hash[:])
				rows = append(rows, row)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: loading %q: %w", instanceID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, instanceID)
	}

	records := make([]Record, 0, len(rows))
	var previous Hash
	for index, row := range rows {
		corrupt := func(format string, args ...any) error {
			return &CorruptionError{InstanceID: instanceID, Seq: row.record.Seq, Reason: fmt.Sprintf(format, args...)}
		}

		if want := uint64(index + 1); row.record.Seq != want {
			return nil, corrupt("sequence gap: expected seq %d", want)
		}
		if row.hashLength != len(Hash{}) {
			return nil, corrupt("chain hash is %d bytes", row.hashLength)
		}

		payload := row.payload
		if row.sealed {
			if j.sealer == nil {
				return nil, corrupt("payload is sealed and no identity is configured")
			}
			payload, err = j.sealer.Open(payload)
			if err != nil {
				return nil, corrupt("%v", err)
			}
		}
		payload, err = decompressPayload(payload, row.compression, row.size)
		if err != nil {
			return nil, corrupt("%v", err)
		}

		record := row.record
		record.Payload = payload
		if index > 0 && records[index-1].Terminal {
			return nil, corrupt("record follows a terminal record")
		}
		if want := chainHash(previous, &record); want != row.hash {
			return nil, corrupt("chain hash mismatch: stored %s, computed %s", row.hash, want)
		}
		previous = row.hash
		records = append(records, record)
	}
	return records, nil
}

// Instances lists every instance in the journal, oldest first.
func (j *Journal) Instances(ctx context.Context) ([]Instance, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: instances: %w", err)
	}
	defer j.pool.Put(conn)

	var instances []Instance
	err = sqlitex.Execute(conn,
		`SELECT i.instance_id, i.created_at, i.terminated_at,
			(SELECT count(*) FROM records r WHERE r.instance_id = i.instance_id)
		 FROM instances i ORDER BY i.created_at, i.instance_id`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				instance := Instance{
					ID:        stmt.ColumnText(0),
					CreatedAt: time.Unix(0, stmt.ColumnInt64(1)).UTC(),
					Records:   stmt.ColumnInt(3),
				}
				if !stmt.ColumnIsNull(2) {
					instance.TerminatedAt = time.Unix(0, stmt.ColumnInt64(2)).UTC()
				}
				instances = append(instances, instance)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: listing instances: %w", err)
	}
	return instances, nil
}

// Delete removes an instance and its history. Deleting an unknown
// instance is not an error.
func (j *Journal) Delete(ctx context.Context, instanceID string) error {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: delete: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM instances WHERE instance_id = ?",
		&sqlitex.ExecOptions{Args: []any{instanceID}})
	if err != nil {
		return fmt.Errorf("journal: deleting %q: %w", instanceID, err)
	}
	return nil
}

// Prune deletes every instance that terminated before cutoff and
// returns their IDs. Live instances are never pruned.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (pruned []string, err error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: prune: %w", err)
	}
	defer j.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return nil, fmt.Errorf("journal: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		"SELECT instance_id FROM instances WHERE terminated_at IS NOT NULL AND terminated_at < ? ORDER BY instance_id",
		&sqlitex.ExecOptions{
			Args: []any{cutoff.UnixNano()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				pruned = append(pruned, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: selecting expired instances: %w", err)
	}
	if len(pruned) == 0 {
		return nil, nil
	}

	err = sqlitex.Execute(conn,
		"DELETE FROM instances WHERE terminated_at IS NOT NULL AND terminated_at < ?",
		&sqlitex.ExecOptions{Args: []any{cutoff.UnixNano()}})
	if err != nil {
		return nil, fmt.Errorf("journal: pruning: %w", err)
	}

	j.logger.Info("journal pruned", "instances", len(pruned), "cutoff", cutoff)
	return pruned, nil
}
