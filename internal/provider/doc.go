// Package provider supplies symbol trees for documents. It defines the
// structure-provider contract the chunk selector consumes and ships two
// built-in implementations: an AST-based provider for Go sources and a
// lightweight tag walker for markup documents.
//
// Providers are registered per file extension; files without a provider
// contribute zero chunks to the index, which is treated as normal input
// rather than an error.
package provider
