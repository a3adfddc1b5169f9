// Package preflight provides readiness checks for the directories and
// external tools singalong depends on.
//
// The daemon logs RunAll and CheckSystemDeps results at startup so a missing
// tool shows up before the first job fails, and the CLI "singalong status"
// command renders the same results as a table. Failed checks never stop the
// daemon: jobs that need a missing tool fail individually.
package preflight
