package cmsisdap

import (
	"encoding/binary"
	"fmt"
)

// Command IDs
const (
	CmdInfo       = 0x00
	CmdConnect    = 0x02
	CmdDisconnect = 0x03
	CmdSWJPins    = 0x10
	CmdSWJClock   = 0x11
)

// DAP_Info IDs
const (
	InfoVendor      = 0x01
	InfoProduct     = 0x02
	InfoSerialNum   = 0x03
	InfoFirmwareVer = 0x04
)

// Connection ports
const (
	PortDefault = 0
	PortSWD     = 1
	PortJTAG    = 2
)

const (
	StatusOK    = 0x00
	StatusError = 0xFF
)

// DAP_SWJ_Pins bit assignments.
const (
	PinTCK   = 1 << 0 // SWCLK/TCK
	PinTMS   = 1 << 1 // SWDIO/TMS
	PinTDI   = 1 << 2
	PinTDO   = 1 << 3
	PinNTRST = 1 << 5
	PinNRST  = 1 << 7
)

// EncodeInfo builds a DAP_Info command.
func EncodeInfo(id byte) []byte {
	return []byte{CmdInfo, id}
}

// DecodeInfo parses a DAP_Info string response.
func DecodeInfo(resp []byte) (string, error) {
	if err := checkHeader(resp, CmdInfo); err != nil {
		return "", err
	}
	n := int(resp[1])
	if len(resp) < 2+n {
		return "", fmt.Errorf("cmsisdap: incomplete info string")
	}
	if n > 0 && resp[1+n] == 0 {
		n--
	}
	return string(resp[2 : 2+n]), nil
}

// EncodeConnect builds a DAP_Connect command.
func EncodeConnect(port byte) []byte {
	return []byte{CmdConnect, port}
}

// DecodeConnect returns the port the probe connected.
func DecodeConnect(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdConnect); err != nil {
		return 0, err
	}
	if resp[1] == PortDefault {
		return 0, fmt.Errorf("cmsisdap: connection failed")
	}
	return resp[1], nil
}

// EncodeDisconnect builds a DAP_Disconnect command.
func EncodeDisconnect() []byte {
	return []byte{CmdDisconnect}
}

// EncodeSWJClock builds a DAP_SWJ_Clock command.
func EncodeSWJClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = CmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// EncodeSWJPins builds a DAP_SWJ_Pins command. Only pins in sel are driven;
// wait is the settle time in microseconds before the pins are read back.
func EncodeSWJPins(out, sel byte, wait uint32) []byte {
	cmd := make([]byte, 7)
	cmd[0] = CmdSWJPins
	cmd[1] = out
	cmd[2] = sel
	binary.LittleEndian.PutUint32(cmd[3:], wait)
	return cmd
}

// DecodeSWJPins returns the pin levels read after the command.
func DecodeSWJPins(resp []byte) (byte, error) {
	if err := checkHeader(resp, CmdSWJPins); err != nil {
		return 0, err
	}
	return resp[1], nil
}

// DecodeStatus checks a one-byte status response.
func DecodeStatus(resp []byte, cmd byte) error {
	if err := checkHeader(resp, cmd); err != nil {
		return err
	}
	if resp[1] != StatusOK {
		return fmt.Errorf("cmsisdap: command 0x%02X failed", cmd)
	}
	return nil
}

func checkHeader(resp []byte, cmd byte) error {
	if len(resp) < 2 {
		return fmt.Errorf("cmsisdap: response too short")
	}
	if resp[0] != cmd {
		return fmt.Errorf("cmsisdap: invalid command ID 0x%02X, want 0x%02X", resp[0], cmd)
	}
	return nil
}
