// Package extract turns document bytes into raw text.
//
// An Extractor tries its Strategies in order and returns the first non-empty
// result. The default chain reads PDF text streams page by page
// (PlainText) and falls back to rebuilding lines from glyph positions
// (Layout), which copes with PDFs whose text operators are out of reading
// order. When every strategy fails or yields only whitespace the Extractor
// returns a DOCUMENT_UNREADABLE error rather than empty text.
package extract
