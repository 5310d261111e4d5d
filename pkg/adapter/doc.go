// Package adapter provides the programmers an ISP session runs on: an
// in-memory simulator, USBasp, CMSIS-DAP probes, ArduinoISP boards and Linux
// spidev/GPIO. Each implements isp.Port and hands out SPI and reset handles.
package adapter
