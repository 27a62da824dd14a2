// Package keyphrase mines normalized skill and topic phrases from text.
//
// Two independent Extractors produce raw candidates: Syntactic (noun-phrase
// style chunks plus "gestión de ..." style administrative phrases) and Rake
// (co-occurrence keyword ranking). A Miner canonicalizes every candidate with
// a Vocabulary, drops the ones the Vocabulary rejects, unions the results in
// first-seen order and collapses near duplicates with Dedup.
//
// Résumés go through MineSkills, which weights skills and experience
// sections before mining. Job postings go through Terms directly.
package keyphrase
