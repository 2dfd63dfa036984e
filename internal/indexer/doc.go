// Package indexer keeps the video catalog in sync with the video directory.
//
// A scan walks the directory for .mp4, .mov and .webm files, skipping
// hidden entries, partial upload chunks and previously transcoded
// variants. Each file is identified by the XXH3-128 digest of its first
// 16 MiB, so moving or renaming a file keeps its identity. New files and
// files without stream metadata are probed with ffprobe. Hashing and
// probing run in parallel; database writes are sequential.
//
// Videos whose files disappear are marked unavailable rather than deleted.
package indexer
