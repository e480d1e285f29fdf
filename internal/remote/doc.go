// Package remote exposes a session over a websocket text protocol.
//
// Clients send command lines and receive one reply per line:
//
//	CMD:run                 OK:run
//	CMD:pause               OK:pause
//	CMD:reset               OK:reset
//	CMD:key start down      OK:key start down
//	CMD:status              OK:paused 1234
//	CMD:frame               OK:1234 9f86d081884c7d65
//	anything else           ERR:<message>
//
// Every run-state event the runner reports is pushed to every connected
// client as EVENT:<name>, for example EVENT:paused. Frames are not streamed.
package remote
