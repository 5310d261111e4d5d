// Package fuse models the configuration bytes of AVR microcontrollers: the
// low, high and extended fuse bytes and the lock byte.
//
// It holds the serial programming instruction table for those bytes and a
// pure decoder that turns a raw byte into named field reports using a
// device's bit-field layout. Nothing here performs I/O; package isp drives
// the instructions over a transport.
//
// # Polarity
//
// Most AVR fuse bits are programmed (enabled) when cleared to 0. Such fields
// are marked ActiveLow and are reported enabled when every bit under their
// mask reads 0. Active-high fields are enabled when every bit reads 1.
package fuse
