package idcode

import "fmt"

// Parse splits a raw IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:          raw,
		Version:      uint8(raw >> 28 & 0xF),
		PartNumber:   uint16(raw >> 12 & 0xFFFF),
		Manufacturer: uint16(raw >> 1 & 0x7FF),
	}
}

// Valid reports whether the value can be an IDCODE: bit 0 set and the
// manufacturer identity not the reserved 0x7F.
func (id IDCode) Valid() bool {
	return id.Raw&1 == 1 && id.Manufacturer&0x7F != 0x7F
}

// Bank returns the JEP106 continuation count.
func (id IDCode) Bank() int {
	return int(id.Manufacturer >> 7)
}

func (id IDCode) String() string {
	m, _ := LookupManufacturer(id.Manufacturer)
	return fmt.Sprintf("0x%08X (%s, part 0x%04X, version %d)", id.Raw, m.Name, id.PartNumber, id.Version)
}
