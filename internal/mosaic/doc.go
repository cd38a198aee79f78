// Package mosaic owns coordination concerns.
//
// Ownership boundary:
// - tile roster and activation state
// - per-tile action queues
// - wire listener and admin surface
// - tile process launches
//
// Lifecycle order:
// - add -> run -> register -> ask/callback -> unregister
//
// - a tile may register without ever being launched by the manager.
//
// - one manager instance is live per process at a time.
//
// Mosaic does not execute actions; tiles do.
package mosaic
