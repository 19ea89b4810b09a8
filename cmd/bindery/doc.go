// Command bindery is the CLI companion to binderyd. Most subcommands talk to
// the daemon's HTTP API; config and offline status checks work without a
// running daemon.
package main
