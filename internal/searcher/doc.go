// Package searcher implements the retrieval side of the semantic index.
//
// A search embeds the query text, scans all of the owner's index entries,
// scores each by cosine similarity, keeps scores at or above the threshold
// (default 0.55), sorts stably by descending similarity, truncates to topK
// (default 10), and joins the survivors to live file records. Trashed or
// missing files drop out of the result silently; folder hits are not
// implemented and the folders slice is always empty.
//
// Retrieval degrades rather than fails: blank queries, embedding failures,
// and store read failures all produce an empty response. The scan is linear
// in the owner's entry count, which is fine at personal-library scale.
//
// An LRU cache keyed by (owner, query, topK, threshold) can short-circuit
// repeated queries; the indexer invalidates it per owner on any change.
package searcher
