// Package separation splits 原曲 catalog entries into instrumental and vocal
// stems by supervising the external separator program.
//
// Jobs run one at a time on a jobqueue.Queue. Each run makes sure the model
// for the job's quality tier is cached, spawns the separator, relays its
// progress, and writes the outcome back onto the catalog entry's audio
// status.
package separation
