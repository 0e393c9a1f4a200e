// Package database manages the SQLite connection for Roomwall Core.
//
// SQLite holds the small amount of durable state the core owns: DMX fixture
// colour/brightness (so lighting survives restarts) and the camera
// simple-ID to hardware-ID map (so external device IDs stay stable).
// Repositories create their own tables on first use.
//
// Concurrency: the pool is limited to a single connection because SQLite
// supports one writer; WAL mode keeps readers unblocked.
package database
