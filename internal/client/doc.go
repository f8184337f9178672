// Package client wraps the watchers into sessions with a single lifecycle.
//
// A FileWatchClient tails one file. A DirWatchClient follows a directory and
// keeps exactly one nested file watcher on its current selection, replacing
// it only after the previous one has exited.
package client
