// Package debugger implements the interactive debugger attached to a session.
//
// The debugger is an ordinary producer and listener: it sends commands on the
// session's command channel and watches its event channel. Blocking commands
// such as continue return when the runner reports a pause, whether caused by
// another producer, a frame limit, or an asynchronous pause request (Ctrl-C).
package debugger
