// Package matcher is the in-process entry point a service layer calls to
// build feature records for résumés and postings and to rank postings for a
// résumé owner.
//
// A Service ties together a features.Builder, a ranking.Engine and a
// store.Store:
//
//	svc, err := matcher.New(matcher.Options{
//	    Store:   st,
//	    Builder: builder,
//	    Engine:  engine,
//	})
//	if _, err := svc.UpsertResumeFromDocument(ctx, ownerID, pdfBytes); err != nil {
//	    return err
//	}
//	ranked, err := svc.RankPostingsForResume(ctx, ownerID, matcher.RankOptions{TopK: 20})
//
// When the owner has no résumé record, RankPostingsForResume returns the
// plain posting listing with Fallback set instead of an error.
package matcher
