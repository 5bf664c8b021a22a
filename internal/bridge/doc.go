// Package bridge connects a sandboxed analysis engine, which only understands
// blocking reads and writes on standard streams, to the host's asynchronous
// controller.
//
// The engine runs on its own goroutine and parks for real when it reads from
// stdin. The controller never parks on the engine's behalf: it writes bytes
// into a Channel and moves on. Channel is the single suspension point between
// the two sides: a bounded mailbox guarded by a mutex and condition variable.
//
// Bridge wraps a Channel into the three streams the engine sees:
//
//   - stdin: blocking reads drained from the Channel
//   - stdout: framed protocol traffic handed to a message sink
//   - stderr: line-buffered diagnostic output handed to a logger
package bridge
