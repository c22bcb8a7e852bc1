// Package wake provides the per-session cancellation handle shared by interrupts and timeouts.
//
// Invariants:
// - A signal is sticky: a signal raised before anyone waits is observed by the next wait.
// - The first signal of a generation decides the reason; later signals are no-ops until Reset.
// - Interrupt and timeout use the same channel and differ only in Reason.
//
// Usage:
//
//	w := wake.New()
//	ctx, cancel := w.Context(context.Background())
//	defer cancel()
//	go func() { w.Signal(wake.Interrupt) }()
//	<-ctx.Done()
//	_ = wake.ReasonOf(ctx) // wake.Interrupt
package wake
