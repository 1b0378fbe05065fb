package lane

import (
	"encoding/binary"
	"hash/crc32"
)

// Record: headerLen(4B BE) | header | body | crc32c(header|body)
// The header carries the entry id, the body its JSON.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(header, body []byte) []byte {
	out := make([]byte, 0, 4+len(header)+len(body)+4)
	var hb [4]byte
	binary.BigEndian.PutUint32(hb[:], uint32(len(header)))
	out = append(out, hb[:]...)
	out = append(out, header...)
	out = append(out, body...)
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, body)
	var cb [4]byte
	binary.BigEndian.PutUint32(cb[:], crc)
	return append(out, cb[:]...)
}

func decodeRecord(b []byte) (header, body []byte, ok bool) {
	if len(b) < 8 {
		return nil, nil, false
	}
	hlen := binary.BigEndian.Uint32(b[:4])
	if int(4+hlen+4) > len(b) {
		return nil, nil, false
	}
	headerEnd := 4 + int(hlen)
	header = b[4:headerEnd]
	body = b[headerEnd : len(b)-4]
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, body)
	if crc != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return nil, nil, false
	}
	return append([]byte(nil), header...), append([]byte(nil), body...), true
}

func encodeEntry(e *Entry) ([]byte, error) {
	body, err := Marshal(e)
	if err != nil {
		return nil, err
	}
	return encodeRecord([]byte(e.ID), body), nil
}

func decodeEntry(b []byte) (*Entry, bool) {
	header, body, ok := decodeRecord(b)
	if !ok {
		return nil, false
	}
	e, err := Unmarshal(body)
	if err != nil || e.ID != string(header) {
		return nil, false
	}
	return e, true
}
