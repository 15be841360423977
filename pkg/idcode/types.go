// Package idcode decodes IEEE 1149.1 IDCODE registers and the device list
// captured from a scan chain after Test-Logic-Reset.
package idcode

// IDCode is a parsed 32-bit IDCODE.
type IDCode struct {
	Raw          uint32
	Version      uint8  // [31:28]
	PartNumber   uint16 // [27:12]
	Manufacturer uint16 // [11:1], JEP106 bank in [10:7], identity in [6:0]
}

// Manufacturer is a JEP106 entry.
type Manufacturer struct {
	Code uint16
	Name string
}
