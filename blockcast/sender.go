package blockcast

import (
	"github.com/ppopth/fountain/codec"
)

// Sender encodes a message and sprays coded blocks to every connected
// peer. Because the codec is rateless, the sender never needs to know
// which blocks were lost; it simply keeps producing fresh ones.
type Sender struct {
	node   *Node
	enc    *codec.Encoder
	nextID uint64
}

// NewSender creates a Sender for one message.
func NewSender(node *Node, message []byte, blockSize int) (*Sender, error) {
	enc, err := codec.NewEncoder(message, blockSize)
	if err != nil {
		return nil, err
	}
	return &Sender{node: node, enc: enc}, nil
}

// Announce broadcasts the session dimensions. Receivers cannot use
// blocks until they have seen an announce, and announces ride the same
// lossy datagrams as blocks, so callers should repeat it between
// spray rounds.
func (s *Sender) Announce() {
	s.node.Broadcast(encodeAnnounce(s.enc.MessageLen(), s.enc.BlockSize()))
	log.Debugf("announced message of %d bytes in blocks of %d", s.enc.MessageLen(), s.enc.BlockSize())
}

// Spray encodes and broadcasts the next count blocks.
func (s *Sender) Spray(count int) error {
	row := make([]byte, s.enc.BlockSize())
	for i := 0; i < count; i++ {
		blockSize, err := s.enc.Encode(s.nextID, row)
		if err != nil {
			return err
		}
		s.node.Broadcast(encodeBlock(s.nextID, row[:blockSize]))
		s.nextID++
	}
	return nil
}

// Sent returns how many blocks have been sprayed so far.
func (s *Sender) Sent() uint64 {
	return s.nextID
}
