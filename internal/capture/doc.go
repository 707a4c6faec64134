// Package capture implements the read modes that move transport stream bytes
// from a tuner to a recording: a raw copy, a UDP relay into an ffmpeg remux,
// and a direct ffmpeg transcode. The relay frames the stream into 188-byte
// packets and waits for its reader to hold the port before sending.
package capture
