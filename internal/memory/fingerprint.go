package memory

import (
	"hash/crc32"
	"strconv"
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32 (Castagnoli) of s as a lowercase hex string.
// It fingerprints file contents and seeds component scope ids.
func Checksum(s string) string {
	return strconv.FormatUint(uint64(crc32.Checksum([]byte(s), crcTable)), 16)
}
