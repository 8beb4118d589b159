// Package relay orchestrates AI conversation exchanges.
//
// # Overview
//
// The relay sits between the HTTP handlers and its collaborators (turn
// store, generation client, session notifier) and runs one exchange end to
// end: validate the prompt, load the bounded history window, generate,
// apply the fallback policy, persist the turn, and shape the uniform
// envelope the messaging UI renders.
//
// # Failure Posture
//
// The relay's default is to absorb failures and keep the user-facing
// contract successful whenever a plausible reply exists:
//
//   - Empty prompt: the only client error (ErrEmptyPrompt)
//   - History read failure: degrade to empty context, log, continue
//   - Upstream failure: substitute FallbackMessage, persist with fallback=true
//   - Persist failure after generation: deliver the reply with a nil
//     envelope ID (the emergency-fallback path)
//
// # Streaming
//
// Stream emits start, chunk and complete/error events through an EmitFunc
// while accumulating the full text, then persists exactly once. A client
// disconnect stops the upstream pull and persists the partial reply flagged
// streamed+interrupted; a mid-flight upstream failure persists nothing.
//
// # Live-Session Echo
//
// Shaped envelopes are published through a Notifier so a user's other open
// sessions see new turns immediately. The Broadcaster implements this as
// in-memory pub/sub with lossy, non-blocking delivery; NoopNotifier is the
// absent variant for serverless deployments.
package relay
