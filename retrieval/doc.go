// Package retrieval implements the Knowledge Retrieval Service: documents are
// split into overlapping chunks, stored in a pluggable Store and searched by
// the knowledge_search tool.
package retrieval
