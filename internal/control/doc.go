// Package control is the control plane between a dedicated emulation
// goroutine and the foreground actors that drive it (front-end, debugger,
// signal handlers, remote monitor).
//
// Three gateways are the only way into the engine:
//
//   - CommandChannel: many producers, single consumer, FIFO per producer.
//   - EventChannel: the runner reports run-state transitions, broadcast to
//     every Listener.
//   - FrameBuffer: guarded full-frame snapshots of the engine's pixels.
//
// The Runner owns the Engine exclusively and is the only caller of its
// mutating operations. PauseFlag is a lock-free pause request usable where
// sending a Command is not an option.
//
// The command queue, event log and frame buffer each have their own mutex.
// No code path acquires one of them while holding another.
//
// Session wires the pieces together and owns the runner goroutine:
//
//	sess := control.NewSession(engine)
//	sess.Start(ctx)
//	defer sess.Shutdown(ctx)
//
//	l := sess.Events().Listen()
//	sess.Send(control.Reset(cfg))
//	sess.Send(control.Run())
package control
