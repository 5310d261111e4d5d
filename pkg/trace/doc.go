// Package trace records every SPI and reset-line call of a programming
// session.
//
// Events are written as a stream of CBOR maps with integer keys, so a trace
// of a failed run can be replayed with `avrisp trace FILE`. A Tracer wraps
// an isp.Port:
//
//	rec, _ := trace.NewFileRecorder("run.cbor")
//	defer rec.Close()
//	port := trace.NewTracer(rec).WrapPort(adapter)
package trace
