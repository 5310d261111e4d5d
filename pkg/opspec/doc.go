// Package opspec parses avrdude-style memory operations:
//
//	lfuse:w:0xE2:m
//	hfuse:r
//	lock:v:0xFC
//
// so existing avrdude command lines carry over to avrisp -U.
package opspec
