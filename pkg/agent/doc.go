// Package agent orchestrates multi-turn LLM runs with tool round-trips and
// durable session history.
//
// Invariants:
// - One run per session id at a time; a concurrent run fails with ErrSessionBusy.
// - Every ToolResult is appended before the next model invocation, in the
//   order its ToolCall was requested, regardless of completion order.
// - Messages are appended to the store only once a model call or tool batch
//   has fully succeeded; cancellation never persists partial messages.
//
// Usage:
//
//	a, _ := agent.New(agent.Config{
//		Model: claude,
//		Store: store,
//		Tools: vaultTools,
//	})
//	resp, _ := a.Run(ctx, "what changed in notes?", "session-1")
//	_ = resp
package agent
