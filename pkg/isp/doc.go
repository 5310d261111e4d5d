// Package isp implements the AVR In-System Programming sequence for fuse and
// lock bytes over a SPI bus and a reset GPIO.
//
// A Session is the protocol state machine:
//
//	Idle -> ResetAsserted -> ProgrammingEnabled -> {Reading | Writing} -> ResetReleased -> Idle
//
// Every transport call blocks and completes before the next step starts. The
// target latches instructions on reset strobes, so steps are never reordered
// and the settle delays (EnableDelay, WriteDelay) are minimums.
//
// A Programmer wraps a Session with device identification and per-group
// selection: in ModeRead every supported group is read and decoded, in
// ModeWrite only groups carrying a value are written. Unsupported groups and
// omitted values are skips, not failures.
//
// Transports are consumed through the SPI, ResetLine and Port interfaces;
// package adapter provides hardware and simulated implementations.
package isp
