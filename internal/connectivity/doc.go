// Package connectivity implements the dual-link state machine that decides
// whether device messages may leave the gateway.
//
// The machine tracks two links layered on top of each other: the wireless
// association and, on top of it, the broker session. Its state is one of
//
//	AssocDown              no wireless association
//	AssocUpSessionDown     associated, no broker session
//	AssocUpSessionUp       associated with a live session (publishing allowed)
//
// Check is called once per supervisory cycle. It re-establishes whichever
// link is down using a bounded retry loop (MaxAttempts attempts, RetryDelay
// after each failure) and gives up for the cycle when the budget is spent.
// The next cycle starts a fresh budget, so the gateway retries forever at a
// fixed cadence.
//
// Every transition into AssocUpSessionUp replays the whole device registry,
// so the broker converges on the latest payload of every known device even
// when individual updates were dropped while a link was down.
//
// Publish is the only gate for outbound device messages: outside
// AssocUpSessionUp it does nothing and reports false.
package connectivity
