// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens zombiezen.com/go/sqlite connection pools with
// lull's standard pragmas.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back. A connection must not be shared between goroutines.
//
// # Pragmas
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous: FULL by default. The coordinator journal is the only
//     durable copy of buffered messages and invocation outcomes, so a
//     committed transition must survive power loss, not just a process
//     crash. Config.Synchronous may relax this to NORMAL for scratch
//     databases.
//   - busy_timeout=5000: wait for the write lock instead of failing
//     with SQLITE_BUSY.
//   - foreign_keys=ON: the journal's records reference its instances
//     table.
//   - temp_store=MEMORY.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   filepath.Join(stateDir, "journal.db"),
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//
// The package stays thin on purpose: SQL is written by the caller and
// transactions use sqlitex.ImmediateTransaction directly.
package sqlitepool
