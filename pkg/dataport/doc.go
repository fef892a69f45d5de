// Package dataport provides the memory shared between a transport driver and
// the channel multiplexer.
package dataport

// An Inlet is the single-producer/single-consumer ring a transport driver
// fills with raw multiplexed bytes. The producer never blocks: bytes that
// do not fit are dropped and the overflow flag is raised, so the consumer
// must drain faster than the link delivers.
//
// A Signal tells the consumer to re-check the ring. It carries no payload
// and coalesces, so consumers always re-check state after waking.
//
// A Port is a fixed-size buffer a client fills before a write call or
// drains after a read call.
