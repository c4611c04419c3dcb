package inflate

// BlockType is the closed set of DEFLATE block kinds (BTYPE).
type BlockType uint8

const (
	BlockStored  BlockType = 0
	BlockFixed   BlockType = 1
	BlockDynamic BlockType = 2
	blockInvalid BlockType = 3
)

func (b BlockType) String() string {
	switch b {
	case BlockStored:
		return "stored"
	case BlockFixed:
		return "fixed"
	case BlockDynamic:
		return "dynamic"
	default:
		return "reserved"
	}
}

const (
	endOfBlock   = 256
	firstLenCode = 257
	lastLenCode  = 285

	// Repeat codes of the code-length alphabet.
	codeRepeatPrev   = 16
	codeRepeatZero   = 17
	codeRepeatZero11 = 18
)

// codeLenOrder is the order in which code-length code lengths are stored in
// a dynamic block header.
var codeLenOrder = [numCodeLenSyms]int{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// Base values and extra-bit counts for length codes 257..285.
var (
	lengthBase = [29]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258,
	}
	lengthExtra = [29]uint8{
		0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2,
		3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0,
	}
)

// Base values and extra-bit counts for distance codes 0..29.
var (
	distBase = [maxNumDist]uint16{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145,
		8193, 12289, 16385, 24577,
	}
	distExtra = [maxNumDist]uint8{
		0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6,
		7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13,
	}
)

// Fixed Huffman tables, shared read-only by every fixed block.
var fixedLit, fixedDist = buildFixedTables()

func fixedLitLengths() []uint8 {
	lengths := make([]uint8, maxNumLit)
	for i := range lengths {
		switch {
		case i < 144:
			lengths[i] = 8
		case i < 256:
			lengths[i] = 9
		case i < 280:
			lengths[i] = 7
		default:
			lengths[i] = 8
		}
	}
	return lengths
}

func fixedDistLengths() []uint8 {
	lengths := make([]uint8, maxNumDist)
	for i := range lengths {
		lengths[i] = 5
	}
	return lengths
}

func buildFixedTables() (*Table, *Table) {
	lit, err := BuildTable(fixedLitLengths())
	if err != nil {
		panic(err)
	}

	dist, err := BuildTable(fixedDistLengths())
	if err != nil {
		panic(err)
	}

	return lit, dist
}
