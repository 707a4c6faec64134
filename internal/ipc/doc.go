// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management, request/response DTOs, and the
// mapping from RPC calls onto the coordination layer. Errors cross the wire
// as strings, so the client only reports them; callers needing the error
// category inspect the message.
//
// Reuse these types when adding new RPC endpoints to keep the protocol stable
// and compatible with existing command implementations.
package ipc
