package eventlog

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding: ts_ms(8B BE) | body | crc32c(ts|body)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(tsMs int64, body []byte) []byte {
	out := make([]byte, 0, 8+len(body)+4)
	out = appendBE8(out, uint64(tsMs))
	out = append(out, body...)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc32.Checksum(out, castagnoli))
	return append(out, crcb[:]...)
}

// recordTime reads the timestamp without verifying the checksum.
func recordTime(b []byte) (int64, bool) {
	if len(b) < 8+4 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b[:8])), true
}

func decodeRecord(b []byte) (tsMs int64, body []byte, ok bool) {
	if len(b) < 8+4 {
		return 0, nil, false
	}
	end := len(b) - 4
	if crc32.Checksum(b[:end], castagnoli) != binary.BigEndian.Uint32(b[end:]) {
		return 0, nil, false
	}
	return int64(binary.BigEndian.Uint64(b[:8])), append([]byte(nil), b[8:end]...), true
}
