// Package selector turns a symbol tree plus document text into a flat,
// non-overlapping list of embeddable chunks.
//
// Selection runs in three passes: a size/significance filter (with fallback
// expansion of oversized class-like nodes into per-member chunks), an
// overlap sweep that visits candidates smallest-first and rejects any
// candidate overlapping an accepted chunk beyond a tolerance fraction of
// its own size, and extraction, which bounds chunk text to a window
// centered on the node's midpoint and derives a context string from the
// ancestor name chain and nearby comment lines.
package selector
