package idcode

import "fmt"

// manufacturers maps the 11-bit IDCODE manufacturer field to a name.
var manufacturers = map[uint16]string{
	0x001: "AMD",
	0x004: "Fujitsu",
	0x009: "Intel",
	0x00E: "Freescale (Motorola)",
	0x015: "Philips Semiconductors",
	0x017: "Texas Instruments",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x021: "Lattice",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x23B: "ARM",
	0x272: "Espressif",
	0x489: "SiFive",
}

// LookupManufacturer names a JEP106 code. Unknown codes get a placeholder
// name and ok == false.
func LookupManufacturer(code uint16) (Manufacturer, bool) {
	name, ok := manufacturers[code]
	if !ok {
		return Manufacturer{Code: code, Name: fmt.Sprintf("Unknown (bank %d, 0x%02X)", code>>7, code&0x7F)}, false
	}
	return Manufacturer{Code: code, Name: name}, true
}
