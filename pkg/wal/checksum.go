package wal

import "hash/crc32"

// castagnoliTable is the CRC32-C polynomial table (hardware-accelerated on
// modern CPUs via SSE4.2/ARM CRC extensions).
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CalculateCRC32 computes the checksum of data.
func CalculateCRC32(data []byte) uint32 {
	return crc32.Checksum(data, castagnoliTable)
}

// ValidateCRC32 reports whether data matches the expected checksum.
func ValidateCRC32(data []byte, expected uint32) bool {
	return CalculateCRC32(data) == expected
}
