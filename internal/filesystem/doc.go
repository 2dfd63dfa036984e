// Package filesystem provides file helpers for the data directory with retry
// logic for NFS stale file handle errors (ESTALE).
//
// The status record and the corrupt registry live on the data volume, which
// is frequently a network mount in container deployments. Reads and writes
// go through StatWithRetry, ReadFileWithRetry and WriteFileAtomic, which
// retry ESTALE with capped exponential backoff and report retries through
// the Observer set with SetObserver.
package filesystem
