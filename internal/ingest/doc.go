// Package ingest turns an uploaded HTML export into a stored, searchable document.
//
// A single Process call parses the HTML, extracts its visible text, copies every
// locally referenced media file into managed storage under a fresh name, rewrites
// the references to the copies, and serializes the rewritten tree. The parse tree
// is owned by the call; Processor itself holds no per-document state, so one
// Processor may serve concurrent uploads.
package ingest
