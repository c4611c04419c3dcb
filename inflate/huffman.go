package inflate

const (
	// maxCodeBits is the longest code length DEFLATE allows.
	maxCodeBits = 15

	maxNumLit      = 288
	maxNumDist     = 30
	numCodeLenSyms = 19
)

// Table is a canonical prefix-code decoding table.
//
// count[l] holds the number of symbols with code length l, and symbols holds
// every coded symbol ordered by code length, then by symbol index. Codes of a
// given length are consecutive integers, so a code can be resolved with
// arithmetic on count alone.
type Table struct {
	count   [maxCodeBits + 1]uint16
	symbols []uint16

	// complete is false when some bit patterns map to no symbol.
	complete bool
}

// BuildTable builds a Table from one code length per symbol. A length of 0
// means the symbol is unused.
func BuildTable(lengths []uint8) (*Table, error) {
	t := &Table{}
	if err := t.init(lengths); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) init(lengths []uint8) error {
	t.count = [maxCodeBits + 1]uint16{}

	for sym, l := range lengths {
		if l > maxCodeBits {
			return corruptf("code length %d for symbol %d exceeds %d", l, sym, maxCodeBits)
		}
		t.count[l]++
	}

	// Each extra bit doubles the available code space; more codes than
	// slots at any length is not a prefix code.
	left := 1
	for l := 1; l <= maxCodeBits; l++ {
		left <<= 1
		left -= int(t.count[l])
		if left < 0 {
			return corruptf("over-subscribed code lengths at length %d", l)
		}
	}
	t.complete = left == 0

	var offs [maxCodeBits + 2]uint16
	for l := 1; l <= maxCodeBits; l++ {
		offs[l+1] = offs[l] + t.count[l]
	}

	n := int(offs[maxCodeBits+1])
	if cap(t.symbols) < n {
		t.symbols = make([]uint16, n)
	}
	t.symbols = t.symbols[:n]

	for sym, l := range lengths {
		if l == 0 {
			continue
		}
		t.symbols[offs[l]] = uint16(sym)
		offs[l]++
	}

	return nil
}

// Complete reports whether every bit pattern decodes to a symbol.
func (t *Table) Complete() bool {
	return t.complete
}

// NumSymbols reports how many symbols carry a code.
func (t *Table) NumSymbols() int {
	return len(t.symbols)
}

// Decode reads one code from c, a bit at a time, and returns its symbol.
func (t *Table) Decode(c *Cursor) (uint16, error) {
	code := 0  // bits read so far, first bit most significant
	first := 0 // first code of the current length
	index := 0 // index in symbols of the first code of the current length

	for l := 1; l <= maxCodeBits; l++ {
		bit, err := c.ReadBit()
		if err != nil {
			return 0, err
		}
		code |= int(bit)

		count := int(t.count[l])
		if code < first+count {
			return t.symbols[index+code-first], nil
		}

		index += count
		first += count
		first <<= 1
		code <<= 1
	}

	return 0, corruptf("no symbol matches a %d-bit code", maxCodeBits)
}
