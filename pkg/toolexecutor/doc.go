// Package toolexecutor runs provider-facing tools for a session.
//
// Invariants:
// - Tool names are unique within an executor.
// - Every execution races the tool against the session wake and a
//   per-execution deadline; whichever fires first decides the outcome.
// - Output streams live to the session sink and is truncated once, for the
//   model, when the execution ends.
// - A timeout never consumes a pending session interrupt.
//
// Usage:
//
//	exec := toolexecutor.New(toolexecutor.Config{DefaultTimeout: 2 * time.Minute})
//	_ = exec.Register(wrappers...)
//	res := exec.Execute(ctx, "Bash", map[string]interface{}{"command": "ls"}, &toolexecutor.ExecutionContext{
//		SessionID: id,
//		Wake:      sessionWake,
//		Sink:      sink,
//	})
package toolexecutor
