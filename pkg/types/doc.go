// Package types provides shared type definitions for the semdex service.
//
// This package defines the domain types that cross component boundaries:
// file references handed to the indexing pipeline, and the search result
// shapes returned by the retrieval surface.
//
// # Core Types
//
// FileRef identifies a stored file to index:
//
//	ref := types.FileRef{
//	    OwnerID: "user-42",
//	    FileKey: "vacation.mp4",
//	}
//
// FileResult combines live file metadata with the semantic fields that
// matched the query:
//
//	result.Semantic.Similarity // cosine score against the query vector
//	result.Semantic.Summary    // generated one-line summary
//
// SearchResponse is the wire shape of a retrieval call. Folders are always
// empty in this retrieval mode; the field exists so clients receive a
// stable shape.
package types
