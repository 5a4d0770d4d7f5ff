// Package ftdc reads MongoDB's Full-Time Diagnostic Data Capture files: a
// sequence of self-delimited BSON-shaped documents, each either a metadata
// snapshot or a compressed metric chunk.
//
// A Reader opens a file (or any io.ReadSeeker) and offers three views over
// it: IterFramed for the raw envelope documents, IterChunks for decoded
// metric chunks with metadata attached, and IterSamples for a flattened,
// time-bounded stream of individual reconstructed records. Each Iter* call
// is a fresh, independent pass from the start of the source — Reader holds
// no cursor of its own between calls.
package ftdc
