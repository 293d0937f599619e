// Package actor serializes Store traffic through a single consumer
// goroutine.
//
// Producers on any goroutine send Operation values (Insert, Remove, Get,
// Find, Clear, Shutdown) into an unbounded FIFO mailbox. One goroutine
// drains it and applies each command to the Store before taking the next.
// Get and Find are request/response: they carry a one-slot reply channel
// that always receives exactly one value, "absent" and "no matches"
// included. Send rejects an unbuffered reply channel with ErrUnbufferedReply.
//
//	producers ──► mailbox (FIFO, unbounded) ──► actor goroutine ──► Store
//	                                                 │
//	                          reply (chan, cap 1) ◄──┘  Get / Find
//
// The Actor's Get and Find methods wrap the reply channel into a blocking
// call bounded by a context.
//
// Shutdown moves the actor from Running to Stopped. Commands queued behind
// it are discarded; it is the producer's job not to send after signaling
// shutdown, and Send reports ErrStopped once the actor has stopped.
package actor
