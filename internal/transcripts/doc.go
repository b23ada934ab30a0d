// Package transcripts reads the conversation transcript tree that the
// metadata store annotates.
//
// Transcripts are JSONL files named by session UUID, grouped into one
// directory per project. This package never writes to the tree: it walks
// it to discover sessions and reads each file once to pull out the fields
// worth showing next to stored metadata, the working directory, the first
// user prompt, and a message count.
//
// The tree belongs to another program, so the scanner is deliberately
// tolerant: a missing root is an empty tree, non-transcript files are
// ignored, and malformed lines inside a transcript are skipped.
package transcripts
