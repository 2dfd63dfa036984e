// Package database stores the video catalog in SQLite.
//
// Each video has a row in videos (location and availability) and one in
// video_info (title, probed dimensions and the persisted 720p/1080p
// variant flags). A small metadata table holds bookkeeping such as the
// last scan time.
//
// The database uses WAL mode so the daemon and the CLI can open it at the
// same time.
package database
