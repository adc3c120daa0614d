// Package memo provides bounded memo tables for pure computations.
//
// Two backends are offered:
//
//   - [LRU] is a fixed-capacity, least-recently-used table. It is exact:
//     an entry that was added and not yet evicted is always returned. It is
//     meant to be scoped to a single ranking pass.
//
//   - [Shared] is a cost-bounded, admission-controlled cache meant to live
//     for the whole process and be shared across passes. Entries may be
//     dropped at any time, so it must only hold values that are cheap to
//     recompute.
//
// Both satisfy [Table]. Hit, miss and eviction counts are exported through
// [Metrics] on a private Prometheus registry.
package memo
