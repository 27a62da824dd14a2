// Package document cleans extracted résumé text and splits it into labeled
// sections.
//
// Normalize is idempotent: it strips NUL, BOM and zero-width markers, folds
// CRLF line endings, maps bullet glyphs (•, ·, ●) to "- " and applies Unicode
// NFC composition. Segment scans the normalized text line by line; a line
// that starts with a known heading word (for example "Experiencia",
// "Habilidades" or "Educación") opens a new section and the heading line
// itself is not kept. Lines before the first heading belong to LabelOther.
package document
