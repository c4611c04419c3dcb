package inflate

// bitWriter packs bits least-significant first, the way DEFLATE streams do.
type bitWriter struct {
	buf []byte
	n   uint // bits used in the last byte
}

func (w *bitWriter) writeBit(b uint32) {
	if w.n == 0 {
		w.buf = append(w.buf, 0)
	}
	w.buf[len(w.buf)-1] |= byte(b&1) << w.n
	w.n = (w.n + 1) % 8
}

// writeBits writes an n-bit integer, low bit first.
func (w *bitWriter) writeBits(v uint32, n uint) {
	for i := uint(0); i < n; i++ {
		w.writeBit(v >> i)
	}
}

// writeCode writes an n-bit Huffman code, high bit first.
func (w *bitWriter) writeCode(code uint32, n uint) {
	for i := n; i > 0; i-- {
		w.writeBit(code >> (i - 1))
	}
}

func (w *bitWriter) align() {
	w.n = 0
}

func (w *bitWriter) bytes() []byte {
	return w.buf
}
