package record

import (
	"encoding/binary"
	"fmt"
)

// Size is the encoded width of one LogRecord in bytes.
const Size = 12

// AppendBinary appends the wire encoding of r to dst.
func (r LogRecord) AppendBinary(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, r.TemplateHash)
	dst = binary.LittleEndian.AppendUint16(dst, r.EvaluationID)
	dst = append(dst, byte(r.Namespace), r.LookupCount)
	return binary.LittleEndian.AppendUint32(dst, r.Flags)
}

// Decode parses one record from the first Size bytes of b.
func Decode(b []byte) (LogRecord, error) {
	if len(b) < Size {
		return LogRecord{}, fmt.Errorf("record: need %d bytes, have %d", Size, len(b))
	}
	return LogRecord{
		TemplateHash: binary.LittleEndian.Uint32(b[0:4]),
		EvaluationID: binary.LittleEndian.Uint16(b[4:6]),
		Namespace:    NamespaceIndex(b[6]),
		LookupCount:  b[7],
		Flags:        binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// EncodeBatch concatenates the encodings of records.
func EncodeBatch(records []LogRecord) []byte {
	out := make([]byte, 0, len(records)*Size)
	for _, r := range records {
		out = r.AppendBinary(out)
	}
	return out
}

// DecodeBatch parses a concatenation of record encodings. The payload length
// must be a multiple of Size.
func DecodeBatch(payload []byte) ([]LogRecord, error) {
	if len(payload)%Size != 0 {
		return nil, fmt.Errorf("record: batch length %d is not a multiple of %d", len(payload), Size)
	}
	records := make([]LogRecord, 0, len(payload)/Size)
	for off := 0; off < len(payload); off += Size {
		r, err := Decode(payload[off:])
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
