// Package broadcast implements the real-time frame fan-out engine.
//
// The Hub owns the set of connected viewers using the actor pattern: a single
// goroutine and a command channel, no mutexes. Each viewer gets its own write
// goroutine with a bounded send buffer, so one slow connection can never stall
// the shared pacing clock. The Streamer paces one frame batch against a
// monotonic schedule and fans each frame out to a fresh snapshot of the Hub.
package broadcast
