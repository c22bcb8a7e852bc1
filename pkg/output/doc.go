// Package output splits a tool's raw output into ordered live chunks for an
// observer and one accumulated buffer for the model.
//
// Invariants:
// - Every chunk reaches the sink and the buffer, in production order.
// - Truncation is applied once, at Finalize, to the buffer copy only.
// - Truncated results end with a notice naming the omitted character count.
//
// Usage:
//
//	s := output.NewStreamer(func(c output.Chunk) { fmt.Print(c.Text) }, output.DefaultLimits())
//	cmd.Stdout, cmd.Stderr = s, s.Stderr()
//	_ = cmd.Run()
//	result := s.Finalize()
package output
