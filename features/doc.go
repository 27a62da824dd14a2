// Package features builds the per-document feature record used for ranking:
// canonical text, mined terms and an embedding vector.
//
// Résumés arrive as document bytes. They are extracted, normalized and
// segmented, and their terms are mined with section weighting. Postings
// arrive as structured records, flattened into text in a fixed field order
// and mined without weighting. Both produce a DocumentFeatures value that
// callers store as a whole, never field by field.
package features
