// Package session runs agent conversations as independent, controllable sessions.
//
// Invariants:
// - A session's status and pause state change together under one lock;
//   pause state is present exactly when the status is Paused.
// - Interrupting one session never affects another.
// - Chunks reach the attached observer and subscribers in production order,
//   each tagged with a correlation id "<session>-<n>".
// - A watcher has at most one parent and watch relationships never form cycles.
//
// Usage:
//
//	reg := session.NewRegistry(session.Config{NewRunner: factory})
//	id, _ := reg.Create(ctx, session.Options{Prompt: "list the repo"})
//	_ = reg.Attach(id, observer)
//	state, _ := reg.PauseQuery(id)
//	_ = reg.Resume(id, pause.Approved)
package session
