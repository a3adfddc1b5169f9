// Package acquisition downloads audio from remote video references and
// registers the results as catalog entries.
//
// QueueJob validates the reference with yt-dlp, deduplicates against pending
// jobs and the catalog, and enqueues a Job on a jobqueue.Queue. The queue
// runs one download at a time: yt-dlp writes Original.wav into a fresh song
// directory, ffprobe reads its duration, the optional lyrics sidecar is
// written, and the catalog entry is created. Job history is persisted to
// downloadJobs.json and survives restarts; jobs that were mid-flight when the
// process died come back failed.
package acquisition
