// Package encryption composes complete messages: it negotiates algorithms
// through the policy package, obtains a session key from the session
// package, assembles the transform stack and drives the plaintext through
// it. The Processor wraps the per-message Composer with atomic file output
// and batch handling.
package encryption
