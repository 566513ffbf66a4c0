package caches

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/crc32"
	"time"
)

// record is the envelope written by backends that store entries as opaque
// values. The checksum lets Read tell a damaged value from a valid one.
type record struct {
	Data     []byte
	Checksum uint32
	StoredAt int64
}

// EncodeRecord wraps data in a checksummed envelope.
func EncodeRecord(data []byte, storedAt time.Time) ([]byte, error) {
	var buff bytes.Buffer
	enc := gob.NewEncoder(&buff)
	if err := enc.Encode(record{
		Data:     data,
		Checksum: crc32.ChecksumIEEE(data),
		StoredAt: storedAt.UTC().Unix(),
	}); err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// DecodeRecord unwraps an envelope produced by EncodeRecord. Any decoding
// problem or checksum mismatch is reported as ErrCorruptItem.
func DecodeRecord(b []byte) ([]byte, error) {
	var r record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptItem, err)
	}

	if crc32.ChecksumIEEE(r.Data) != r.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptItem)
	}

	if r.Data == nil {
		r.Data = []byte{}
	}

	return r.Data, nil
}
