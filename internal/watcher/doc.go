// Package watcher holds the two tailing primitives.
//
// FileWatch follows a single file and emits newly appended lines as Message
// values. DirWatch follows a directory and reports the path of the most
// recently modified eligible file whenever the selection changes. Both run as
// worker.Func bodies: they block until the dying channel closes, the watched
// resource goes away, or setup fails.
//
// Change detection combines fsnotify events with a polling fallback paced by a
// Cadence, so a missed or coalesced event only delays delivery.
package watcher
