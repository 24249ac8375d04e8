// Package dedup suppresses repeated log records with bounded memory.
//
// A BloomFilter answers "have we probably logged this record already?" with
// no false negatives and a false-positive rate that stays below 0.01% while
// it holds at most DesignCapacity distinct records.
//
// A single filter that is cleared when full forgets everything at once, which
// produces a burst of re-logged duplicates right after the clear. FilterGroup
// instead writes every insertion into a ring of filters and clears only the
// current one every R insertions, so the filter that becomes current next
// still remembers the most recent history.
//
// Neither type is safe for concurrent use; both belong to a single request.
package dedup
