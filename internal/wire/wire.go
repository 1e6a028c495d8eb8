package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strconv"
)

const (
	version byte = 1

	KindNil        byte = 1
	KindString     byte = 2
	KindBytes      byte = 3
	KindBool       byte = 4
	KindFloat      byte = 5
	KindStructured byte = 6
)

var (
	ErrCorrupt = errors.New("cachekit: corrupt entry")
	magic4     = [...]byte{'C', 'K', 'I', 'T'}
)

// header: magic(4) | ver(1) | kind(1) | serializer(1) | vlen(u32 be)
const hdrLen = 4 + 1 + 1 + 1 + 4

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// IsFramed reports whether b starts with the frame magic. Unframed values are
// bare base-10 integers (see EncodeInt).
func IsFramed(b []byte) bool { return hasMagic(b) }

// Encode frames payload:
//
//	magic(4) | ver(1) | kind(1) | serializer(1) | vlen(u32 be) | payload(vlen)
//
// serializer is 0 for every kind except KindStructured.
func Encode(kind, serializer byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kind)
	buf.WriteByte(serializer)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. Trailing bytes are rejected.
func Decode(b []byte) (kind, serializer byte, payload []byte, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, 0, nil, ErrCorrupt
	}
	kind, serializer = b[5], b[6]
	if kind < KindNil || kind > KindStructured {
		return 0, 0, nil, ErrCorrupt
	}

	off := 7
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // overflow-safe, no trailing junk
		return 0, 0, nil, ErrCorrupt
	}
	return kind, serializer, b[off : off+vlen], nil
}

// EncodeInt stores n as bare base-10 ASCII so backends can apply their
// native atomic increments to it.
func EncodeInt(n int64) []byte { return strconv.AppendInt(nil, n, 10) }

// EncodeUint is EncodeInt for unsigned values.
func EncodeUint(u uint64) []byte { return strconv.AppendUint(nil, u, 10) }

// ParseInt decodes a bare integer. Trailing spaces are tolerated: memcached
// pads a counter in place when its decimal width shrinks.
func ParseInt(b []byte) (int64, error) {
	s := trimCounter(b)
	if s == "" || s[0] == '+' {
		return 0, ErrCorrupt
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrCorrupt
	}
	return n, nil
}

// ParseUint decodes a bare unsigned integer (values above MaxInt64).
func ParseUint(b []byte) (uint64, error) {
	s := trimCounter(b)
	if s == "" || s[0] == '+' {
		return 0, ErrCorrupt
	}
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrCorrupt
	}
	return u, nil
}

func trimCounter(b []byte) string {
	return string(bytes.TrimRight(b, " \r\n"))
}
