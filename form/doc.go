// Package form drives one in-progress edit of a dynamic form.
//
// A Controller owns the value snapshot of the edit. Every change produces a
// new snapshot; a map returned by Snapshot is never modified afterwards.
//
// When the user changes a value, fields whose calculation expression
// refers to it (form.<name> or grids.<name>) are queued for recomputation
// instead of being recomputed inside the change handler. The queue is
// drained by Flush, which the host calls directly or through the
// Options.Schedule hook. Values written by a recomputation do not queue
// their own dependents: recomputation reaches exactly one hop past the
// user's edit.
//
// Hidden and read-only state comes from formrules.StateComputer. A field
// or grid whose hidden state no rule decided falls back to its legacy
// visibility expression.
package form
