package blockcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/ppopth/fountain/codec"
)

// Collector assembles one message from coded blocks arriving at a
// Node. It ignores blocks until it has seen the sender's announce,
// then feeds every block to an incremental decoder until the message
// is recoverable.
type Collector struct {
	node *Node

	mu      sync.Mutex
	dec     *codec.Decoder
	message []byte
	failure error
	done    chan struct{}
}

// NewCollector creates a Collector and installs it as the node's
// datagram handler.
func NewCollector(node *Node) *Collector {
	c := &Collector{
		node: node,
		done: make(chan struct{}),
	}
	node.SetDatagramHandler(c.handle)
	return c
}

func (c *Collector) handle(from peer.ID, dgram []byte) {
	if len(dgram) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.message != nil || c.failure != nil {
		return
	}

	switch dgram[0] {
	case tagAnnounce:
		c.handleAnnounce(from, dgram)
	case tagBlock:
		c.handleBlock(from, dgram)
	default:
		log.Warnf("unknown datagram tag 0x%02x from %s", dgram[0], from)
	}
}

func (c *Collector) handleAnnounce(from peer.ID, dgram []byte) {
	messageLen, blockSize, err := decodeAnnounce(dgram)
	if err != nil {
		log.Warnf("bad announce from %s: %v", from, err)
		return
	}
	if c.dec != nil {
		// Senders repeat announces to survive loss
		return
	}

	dec, err := codec.NewDecoder(messageLen, blockSize)
	if err != nil {
		c.fail(fmt.Errorf("announce from %s rejected: %w", from, err))
		return
	}
	c.dec = dec
	log.Infof("collecting %d bytes in blocks of %d from %s", messageLen, blockSize, from)
}

func (c *Collector) handleBlock(from peer.ID, dgram []byte) {
	if c.dec == nil {
		// Announce not seen yet, the sender will resend this block's
		// information as later coded blocks
		return
	}
	blockID, row, err := decodeBlock(dgram)
	if err != nil {
		log.Warnf("bad block from %s: %v", from, err)
		return
	}

	result, err := c.dec.Decode(blockID, row)
	if err != nil {
		if errors.Is(err, codec.ErrInvalidInput) {
			log.Warnf("discarding block %d from %s: %v", blockID, from, err)
			return
		}
		c.fail(fmt.Errorf("decoding stalled after block %d: %w", blockID, err))
		return
	}
	if result != codec.Success {
		return
	}

	message := make([]byte, c.dec.MessageLen())
	written, err := c.dec.Recover(message)
	if err != nil {
		c.fail(err)
		return
	}
	c.message = message[:written]
	close(c.done)
	log.Infof("recovered %d bytes after %d blocks", written, c.dec.ReceivedCount())
}

// fail latches a permanent error. Callers must hold c.mu.
func (c *Collector) fail(err error) {
	c.failure = err
	close(c.done)
	log.Errorf("collection failed: %v", err)
}

// Wait blocks until the message has been recovered, collection has
// permanently failed, or the context is done.
func (c *Collector) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure != nil {
		return nil, c.failure
	}
	return c.message, nil
}

// Received returns how many distinct blocks have been accepted so far.
func (c *Collector) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dec == nil {
		return 0
	}
	return c.dec.ReceivedCount()
}
