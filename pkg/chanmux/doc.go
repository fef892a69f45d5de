// Package chanmux multiplexes logical byte-stream channels over one
// physical transport.
package chanmux

// Incoming bytes arrive in a dataport.Inlet filled by the transport driver.
// A Drainer moves them into a staging fifo and feeds them one at a time to
// the ChanMux parser, which rebuilds frames and delivers each payload into
// the receive buffer of its channel. Clients pick the payloads up through
// a Session.
//
// The inlet has no backpressure towards its producer, so the Drainer
// prefers draining over processing until the staging fifo passes its
// watermark, then processes the excess before draining again. An inlet
// overflow observed while idle stops the Drainer for good.
//
// Outgoing data is framed per write call and handed to the transport in a
// single write under the transmit lock, so frames of different channels
// never interleave on the wire.
//
// Frame layout: channel id (1 byte), payload length (2 bytes, big endian),
// payload. There is no checksum; the parser resynchronizes by dropping
// bytes until it sees a configured channel id.
