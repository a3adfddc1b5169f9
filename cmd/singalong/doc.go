// Package main hosts the singalong CLI.
//
// Commands talk to the daemon over its Unix socket: queue downloads and
// separations, inspect the library, manage cached models and adjust
// preferences. The hidden daemon command runs the daemon itself in the
// foreground; start and stop launch and terminate it in the background.
package main
