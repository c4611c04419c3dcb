package gunzip

import (
	"hash/crc32"
)

// Digest accumulates the CRC-32 (IEEE, reflected 0xEDB88320) and the length
// modulo 2^32 of the bytes written to it, as recorded in a gzip trailer.
type Digest struct {
	crc  uint32
	size uint32
}

// WriteByte adds a single byte.
func (d *Digest) WriteByte(b byte) error {
	c := ^d.crc
	c = crc32.IEEETable[byte(c)^b] ^ c>>8
	d.crc = ^c
	d.size++
	return nil
}

// Write implements io.Writer and never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.crc = crc32.Update(d.crc, crc32.IEEETable, p)
	d.size += uint32(len(p))
	return len(p), nil
}

// Sum32 returns the finalized checksum of everything written so far.
func (d *Digest) Sum32() uint32 {
	return d.crc
}

// Size returns the number of bytes written, modulo 2^32.
func (d *Digest) Size() uint32 {
	return d.size
}

// Reset clears the digest.
func (d *Digest) Reset() {
	d.crc, d.size = 0, 0
}
