// Package crc64 implements the CRC-64 used for OpenIGTLink body checksums.
//
// The variant is CRC-64/ECMA-182: polynomial 0x42F0E1EBA9EA3693 processed
// MSB first, zero initial value and no final xor. hash/crc64 in the
// standard library only provides the reflected form, which produces
// different values.
package crc64

import "hash"

// Size of a CRC-64 checksum in bytes.
const Size = 8

// Poly is the ECMA-182 generator polynomial.
const Poly uint64 = 0x42F0E1EBA9EA3693

var table = makeTable(Poly)

func makeTable(poly uint64) *[256]uint64 {
	t := new([256]uint64)
	for i := 0; i < 256; i++ {
		crc := uint64(i) << 56
		for j := 0; j < 8; j++ {
			if crc&(1<<63) != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return t
}

// Update returns the result of adding the bytes in p to crc.
func Update(crc uint64, p []byte) uint64 {
	for _, b := range p {
		crc = table[byte(crc>>56)^b] ^ crc<<8
	}
	return crc
}

// Checksum returns the CRC-64 of data.
func Checksum(data []byte) uint64 {
	return Update(0, data)
}

type digest struct {
	crc uint64
}

// New creates a hash.Hash64 computing the same checksum.
func New() hash.Hash64 {
	return &digest{}
}

func (d *digest) Size() int      { return Size }
func (d *digest) BlockSize() int { return 1 }
func (d *digest) Reset()         { d.crc = 0 }
func (d *digest) Sum64() uint64  { return d.crc }

func (d *digest) Write(p []byte) (int, error) {
	d.crc = Update(d.crc, p)
	return len(p), nil
}

func (d *digest) Sum(in []byte) []byte {
	s := d.Sum64()
	return append(in, byte(s>>56), byte(s>>48), byte(s>>40), byte(s>>32),
		byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}
