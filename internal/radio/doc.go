// Package radio defines the wireless actions the console can invoke and the
// driver contract behind them.
//
// A Station implements Action on top of a Driver. It owns the text produced
// for the client (scan tables, FTM reports, estimates and diagnostics) and
// the bounded wait on ranging sessions; drivers only talk to the hardware
// or a simulation of it.
//
// Drivers:
//   - sim: simulated access points with configurable distances
//   - nl80211: Linux scans through the kernel wireless stack
package radio
