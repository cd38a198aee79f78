// Package tile owns the worker side of the wire protocol.
//
// Ownership boundary:
// - launch argument parsing
// - wire client calls
// - the register/poll/execute/acknowledge loop
//
// Lifecycle order:
// - parse port -> register -> poll -> execute -> callback -> unregister
//
// - at most one action executes at a time.
//
// - an unacknowledged action stays queued on the control plane.
//
// Tile does not decide what actions exist; its action table does.
package tile
