// Package protocol owns the OpenIGTLink wire contract.
//
// Ownership boundary:
// - shared error kinds
// - crc64: body checksum
// - wire: bounds-checked big-endian primitives
// - header: fixed header, V2 extended header and metadata
// - message: lifecycle, type registry and typed body codecs
// - stream: frame reading/writing over io.Reader/io.Writer
package protocol
