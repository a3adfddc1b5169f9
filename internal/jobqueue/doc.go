// Package jobqueue implements the single-runner job queue shared by every job
// family in singalong.
//
// A Queue keeps an ordered list of jobs (newest first for display), a single
// active slot, a subscriber list, and a write-through Store. Enqueue inserts a
// job and promotes the oldest queued job when the slot is free; once the
// family's runner returns, the slot is released and the next queued job is
// promoted, so the queue drains without a scheduler loop.
//
// Every mutation produces one broadcast: subscribers receive a sorted copy of
// the job list in mutation order, then the list is persisted. Subscriber
// panics and persistence failures are logged and never interrupt execution.
// On construction, jobs persisted in an executing state are marked as
// interrupted because the process that ran them is gone.
package jobqueue
