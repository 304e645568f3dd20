// Package memory contains retrieval.Store implementations. InMemoryStore is
// a process-local keyword index suited to tests, demos and small corpora; the
// sqlite subpackage provides a persistent vector index.
package memory
