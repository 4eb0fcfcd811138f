// Package scheduler registers named cron triggers and enqueues their jobs into
// the task engine when they fire. It does not execute jobs itself.
//
// All triggers share one location (the configured timezone).
package scheduler
