// Package ranking merges three relevance signals into one ordering of
// candidate documents against a query document.
//
// The signals are cosine similarity between embeddings, a lexical score from
// a bag-of-words model fitted over the candidate pool, and a weighted count of
// query terms that fuzzy-match a candidate's term list. Each signal is min-max
// normalized across the pool before the weighted sum, so the weights compare
// like with like whatever the raw ranges are.
//
// An Engine is stateless between requests: BuildIndex fits a fresh lexical
// model for every pool and Rank reads it without mutating it.
//
//	idx, err := engine.BuildIndex(ctx, candidates)
//	res, err := engine.Rank(ctx, query, idx, ranking.Weights{Alpha: .55, Beta: .45})
package ranking
