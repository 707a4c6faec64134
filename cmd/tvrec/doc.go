// Command tvrec controls the tvrec recording daemon: it launches and stops
// tvrecd, starts and removes recordings, manages listings and recording rules,
// and reports recorder and dependency status over the daemon's IPC socket.
package main
