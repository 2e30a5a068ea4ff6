// Package feed provides the append-only log that stores encoded envelopes.
//
// Ownership boundary:
// - Log backends (memory, local filesystem, redis streams)
// - validate-then-append writer
// - paged, fault-tolerant readers and the merged timeline
//
// A Log stores opaque blocks addressed by dense sequence numbers starting at
// zero. Ordering across feeds, replication and authorship checks are not
// handled here.
package feed
