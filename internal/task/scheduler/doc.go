// Package scheduler runs named maintenance jobs on cron schedules.
//
// Jobs run in the cron goroutine with their own timeout. A job that is
// still running when its next trigger fires is skipped, not stacked.
package scheduler
