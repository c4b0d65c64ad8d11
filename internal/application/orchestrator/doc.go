// Package orchestrator implements the session state machine that drives a
// generation request through its lifecycle:
//
//	PENDING → GENERATING → REVIEWING → REFINING → {COMPLETED | FAILED}
//
// with REFINING looping back to GENERATING while continuation criteria
// hold. Each iteration invokes the generator, fans out to the two critics
// concurrently, and asks the generator to rank the critiques. Every
// transition and entity is persisted before the next step, so a restarted
// run resumes from persisted state via existence checks instead of
// repeating completed remote calls.
package orchestrator
