package blockcast

import (
	"encoding/binary"
	"fmt"
)

// Datagram layout. A transfer starts with an announce carrying the
// session dimensions; every other datagram carries one block. The
// codec itself defines no framing, so this header is owned by the
// transport.
//
//	announce: 0x01 | messageLen u64 | blockSize u32
//	block:    0x02 | blockID u64    | row bytes
const (
	tagAnnounce = 0x01
	tagBlock    = 0x02

	announceLen    = 1 + 8 + 4
	blockHeaderLen = 1 + 8
)

func encodeAnnounce(messageLen uint64, blockSize int) []byte {
	buf := make([]byte, announceLen)
	buf[0] = tagAnnounce
	binary.BigEndian.PutUint64(buf[1:], messageLen)
	binary.BigEndian.PutUint32(buf[9:], uint32(blockSize))
	return buf
}

func decodeAnnounce(dgram []byte) (messageLen uint64, blockSize int, err error) {
	if len(dgram) != announceLen || dgram[0] != tagAnnounce {
		return 0, 0, fmt.Errorf("malformed announce datagram of %d bytes", len(dgram))
	}
	return binary.BigEndian.Uint64(dgram[1:]), int(binary.BigEndian.Uint32(dgram[9:])), nil
}

func encodeBlock(blockID uint64, row []byte) []byte {
	buf := make([]byte, blockHeaderLen+len(row))
	buf[0] = tagBlock
	binary.BigEndian.PutUint64(buf[1:], blockID)
	copy(buf[blockHeaderLen:], row)
	return buf
}

func decodeBlock(dgram []byte) (blockID uint64, row []byte, err error) {
	if len(dgram) < blockHeaderLen+1 || dgram[0] != tagBlock {
		return 0, nil, fmt.Errorf("malformed block datagram of %d bytes", len(dgram))
	}
	return binary.BigEndian.Uint64(dgram[1:]), dgram[blockHeaderLen:], nil
}
