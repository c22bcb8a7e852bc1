// Package agent runs the model side of a session: it calls an LLM provider,
// executes the tool calls it asks for and feeds the results back.
//
// Invariants:
// - Tool calls route through the session's toolexecutor only.
// - Every tool call in the history is followed by exactly one tool result.
// - Provider failures are retried with backoff only when IsRetryableError.
//
// Usage:
//
//	factory, _ := agent.NewRunnerFactory(agent.FactoryConfig{
//		Providers: map[facade.Provider]agent.Credentials{facade.Claude: {APIKey: key}},
//		Tools:     tools,
//	})
//	registry := session.NewRegistry(session.Config{NewRunner: factory})
package agent
