// Package pause implements the per-session gate a tool uses to suspend until
// a human resumes it.
//
// Invariants:
// - A gate holds at most one open pause; opening a second fails with ErrAlreadyPaused.
// - Resume on a closed gate fails with ErrNotPaused.
// - Resume delivers the response before the pause state is cleared.
// - Cancelling the waiting context or calling Abandon closes the pause as Interrupted.
//
// Usage:
//
//	g := pause.NewGate(nil)
//	go func() { _ = g.Resume(pause.Approved) }()
//	resp, err := g.Open(ctx, pause.Request{Kind: pause.Confirm, ToolName: "Bash", Message: "Potentially dangerous command"})
package pause
