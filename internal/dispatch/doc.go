// Package dispatch turns notes into sent emails.
//
// Pipeline renders a note through an owner's template, records the result
// as a SendRecord keyed by an idempotency key, and delivers it through the
// first authorized mail provider. A key that already has a record replays
// that record without rendering or sending again; the storage uniqueness
// constraint on the key is the only synchronization between concurrent
// dispatches.
//
// Records move pending -> sent or pending -> failed. Retry moves a failed
// record back to pending and resends the content captured at dispatch
// time. SweepStale fails pending records abandoned by a crashed or timed
// out dispatch so they become retry-eligible.
//
// Templates wraps template CRUD with syntax validation and version history.
// The River tasks in tasks.go run dispatch, retry and the sweep in the
// background.
package dispatch
