package serializer

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
)

var ErrCorrupted = errors.New("corrupted cache value")

const prefix = "---OUTPUT-CACHE-BODY---\n"

// Serialize wraps a response body for storage.
// The stored form is the prefix, a checksum line and the body.
func Serialize(body []byte) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(prefix)+9+len(body)))
	buf.WriteString(prefix)
	buf.WriteString(strconv.FormatUint(uint64(crc32.ChecksumIEEE(body)), 16))
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// Deserialize returns the body of a stored value.
// Values that were not produced by Serialize, or were altered since, yield ErrCorrupted.
func Deserialize(b []byte) ([]byte, error) {
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return nil, fmt.Errorf("%w: invalid prefix", ErrCorrupted)
	}
	rest := b[len(prefix):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 {
		return nil, fmt.Errorf("%w: missing checksum", ErrCorrupted)
	}
	sum, err := strconv.ParseUint(string(rest[:nl]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: checksum: %v", ErrCorrupted, err)
	}
	body := rest[nl+1:]
	if uint32(sum) != crc32.ChecksumIEEE(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}
	return body, nil
}
