// Package avr identifies AVR targets by their three signature bytes.
//
// The device database lives in the deviceinfo subpackage; SignatureIdentifier
// joins the two and plugs into isp.Programmer:
//
//	id := &avr.SignatureIdentifier{Port: a, Catalog: deviceinfo.Default()}
//	prog, err := isp.NewProgrammer(a, id, cfg)
package avr
