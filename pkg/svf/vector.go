package svf

import (
	"fmt"
	"strings"

	"github.com/boljen/go-bitmap"
)

// ParseHex converts a hex number, most significant digit first, into n bits
// stored LSB first. It accepts the SVF form "(1F 00)" as well as "0x1F_00".
func ParseHex(s string, n int) ([]byte, error) {
	s = strings.Trim(strings.TrimSpace(s), "()")
	s = strings.Join(strings.Fields(s), "")
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return nil, fmt.Errorf("svf: empty hex vector")
	}
	buf := make([]byte, (n+7)/8)
	out := bitmap.Bitmap(buf)
	for i := 0; i < len(s); i++ {
		c := s[len(s)-1-i]
		v, ok := hexValue(c)
		if !ok {
			return nil, fmt.Errorf("svf: bad hex digit %q", c)
		}
		for b := 0; b < 4; b++ {
			if v&(1<<uint(b)) == 0 {
				continue
			}
			bit := i*4 + b
			if bit >= n {
				return nil, fmt.Errorf("svf: vector %s wider than %d bits", s, n)
			}
			out.Set(bit, true)
		}
	}
	return buf, nil
}

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// FormatHex renders n LSB-first bits as hex digits, most significant first,
// without prefix.
func FormatHex(b []byte, n int) string {
	m := bitmap.Bitmap(b)
	digits := (n + 3) / 4
	var sb strings.Builder
	for d := digits - 1; d >= 0; d-- {
		var v byte
		for k := 0; k < 4; k++ {
			bit := d*4 + k
			if bit < n && bit/8 < len(b) && m.Get(bit) {
				v |= 1 << uint(k)
			}
		}
		sb.WriteByte("0123456789ABCDEF"[v])
	}
	return sb.String()
}

// ones returns n set bits.
func ones(n int) []byte {
	buf := make([]byte, (n+7)/8)
	out := bitmap.Bitmap(buf)
	for i := 0; i < n; i++ {
		out.Set(i, true)
	}
	return buf
}

// splice copies n bits of src into dst starting at bit offset off.
func splice(dst []byte, off int, src []byte, n int) {
	d := bitmap.Bitmap(dst)
	s := bitmap.Bitmap(src)
	for i := 0; i < n; i++ {
		d.Set(off+i, i/8 < len(src) && s.Get(i))
	}
}
