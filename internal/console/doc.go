// Package console serves the command console on a single TCP connection.
//
// Two goroutines share a pair of ring buffers under one mutex. The input
// side reads the socket into the inbound buffer, reassembles frames and
// dispatches them inline; the dispatcher's output lines are appended to the
// outbound buffer. The output side drains the outbound buffer on a fixed
// tick and writes it to the socket outside the lock. Overflow in either
// buffer drops bytes.
package console
