// Package catalog persists the song catalog in SQLite and owns each entry's
// song directory under <data>/songs/<id>.
//
// The job managers consult it through narrow interfaces declared in their own
// packages: acquisition creates entries and checks for remote duplicates,
// separation flips audio_status and records stem paths. Mutate runs each
// change in its own transaction and stamps updated_at; List is served from a
// read-through cache that every write invalidates. Delete removes the song
// directory and notifies registered hooks so job history can follow.
package catalog
