// Package traffic orchestrates simulated browsing sessions: the
// orchestrator admits sessions under a concurrency cap and drives each
// one through fingerprint synthesis, capability setup, the behavior
// engine and retry handling; the behavior engine walks the target site
// the way its persona would, executing the persona's mission when it
// carries one.
package traffic
