// Package scheduler wraps robfig/cron for the periodic library scan and
// transcode run.
package scheduler
