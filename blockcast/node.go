// Package blockcast broadcasts rateless-coded messages over QUIC
// datagrams. A sender sprays coded blocks to its peers and a collector
// feeds whatever subset arrives into an incremental decoder.
package blockcast

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"

	logging "github.com/ipfs/go-log/v2"
	ic "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
)

var log = logging.Logger("blockcast")

const (
	DefaultPort = 7001
)

// DatagramHandler receives every datagram arriving from a connected peer.
type DatagramHandler func(from peer.ID, dgram []byte)

// NodeOption configures a Node during construction.
type NodeOption func(*Node) error

// Node maintains peer-to-peer QUIC connections and moves coded blocks
// over unreliable datagrams. Loss and reordering are expected; the
// rateless codec on top makes any sufficiently large subset of blocks
// enough to recover the message.
type Node struct {
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup

	mutex       sync.Mutex
	connections map[peer.ID]quic.Connection
	handler     DatagramHandler

	certificate *tls.Certificate
	endpoint    *net.UDPAddr
	peerID      peer.ID
	privateKey  crypto.PrivateKey

	transport *quic.Transport
	listener  *quic.Listener
}

// NewNode creates a new Node listening for peer connections.
func NewNode(opts ...NodeOption) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	node := &Node{
		ctx:    ctx,
		cancel: cancel,

		endpoint:    net.UDPAddrFromAddrPort(netip.AddrPortFrom(netip.IPv4Unspecified(), DefaultPort)),
		connections: make(map[peer.ID]quic.Connection),
	}

	for _, opt := range opts {
		err := opt(node)
		if err != nil {
			return nil, err
		}
	}

	// Generate identity if not provided
	if node.privateKey == nil {
		_, privateKey, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		err = WithIdentity(privateKey)(node)
		if err != nil {
			return nil, err
		}
	}

	udpConn, err := net.ListenUDP("udp", node.endpoint)
	if err != nil {
		return nil, err
	}
	node.transport = &quic.Transport{
		Conn: udpConn,
	}

	// Self-signed certificate carrying the identity key
	if node.certificate, err = createTLSCertFromKey(node.privateKey); err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*node.certificate},
		ClientAuth:   tls.RequireAnyClientCert,
	}
	quicConfig := &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  30 * time.Minute,
	}
	node.listener, err = node.transport.Listen(tlsConfig, quicConfig)
	if err != nil {
		return nil, err
	}

	node.waitGroup.Add(1)
	go node.acceptLoop()

	return node, nil
}

// Connect establishes an outgoing connection to a peer.
func (n *Node) Connect(ctx context.Context, addr net.Addr) error {
	dialCtx, cancel := context.WithCancel(context.Background())
	n.waitGroup.Add(1)
	go func() {
		defer n.waitGroup.Done()
		defer cancel()

		select {
		case <-n.ctx.Done():
		case <-ctx.Done():
		}
	}()

	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{*n.certificate}, // Put a certificate to do client authentication
		InsecureSkipVerify: true,                              // TODO: Verify the certifcate properly when it's implemented
	}
	quicConfig := &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  30 * time.Minute,
	}
	conn, err := n.transport.Dial(dialCtx, addr, tlsConfig, quicConfig)
	if err != nil {
		return err
	}

	peerID, err := n.handleConnection(conn)
	if err != nil {
		return err
	}
	log.Infof("connected to %s at %s", peerID, addr)
	return nil
}

func (n *Node) LocalAddr() net.Addr {
	return n.transport.Conn.LocalAddr()
}

func (n *Node) ID() peer.ID {
	return n.peerID
}

func (n *Node) Close() error {
	if err := n.transport.Close(); err != nil {
		return err
	}
	n.cancel()
	n.waitGroup.Wait()
	return nil
}

// SetDatagramHandler registers the callback invoked for every received
// datagram. It must be set before peers start sending.
func (n *Node) SetDatagramHandler(handler DatagramHandler) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.handler = handler
}

// Broadcast sends one datagram to every connected peer. Delivery is
// best effort; datagrams dropped by the path are not retransmitted.
func (n *Node) Broadcast(dgram []byte) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	for peerID, conn := range n.connections {
		if err := conn.SendDatagram(dgram); err != nil {
			log.Debugf("dropping datagram to %s: %v", peerID, err)
		}
	}
}

// PeerCount returns the number of currently connected peers.
func (n *Node) PeerCount() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return len(n.connections)
}

// handleConnection processes a new connection (incoming or outgoing)
func (n *Node) handleConnection(conn quic.Connection) (peer.ID, error) {
	// Extract peer ID from TLS certificate
	peerCert := conn.ConnectionState().TLS.PeerCertificates[0]
	peerID, err := peerIDFromCertificate(peerCert)
	if err != nil {
		return "", fmt.Errorf("failed parsing for a peer ID from the TLS certificate: %v", err)
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()

	// Prevent duplicate connections
	if _, exists := n.connections[peerID]; exists {
		return "", fmt.Errorf("already connected to peer %s", peerID)
	}
	n.connections[peerID] = conn

	n.waitGroup.Add(1)
	go n.receiveLoop(peerID, conn)

	n.waitGroup.Add(1)
	go func() {
		defer n.waitGroup.Done()
		// Clean up when connection closes
		<-conn.Context().Done()

		n.mutex.Lock()
		delete(n.connections, peerID)
		n.mutex.Unlock()
	}()
	return peerID, nil
}

// receiveLoop drains datagrams from one connection until it closes.
func (n *Node) receiveLoop(peerID peer.ID, conn quic.Connection) {
	defer n.waitGroup.Done()

	for {
		dgram, err := conn.ReceiveDatagram(n.ctx)
		if err != nil {
			log.Debugf("receive from %s ended: %v", peerID, err)
			return
		}

		n.mutex.Lock()
		handler := n.handler
		n.mutex.Unlock()
		if handler != nil {
			handler(peerID, dgram)
		}
	}
}

// acceptLoop handles incoming connections
func (n *Node) acceptLoop() {
	defer n.waitGroup.Done()

	log.Infof("listening on %s", n.endpoint)
	log.Infof("peer ID: %s", n.peerID)

	for {
		conn, err := n.listener.Accept(n.ctx)
		if err != nil {
			// Context cancelled, shutting down
			log.Warnf("listener accept error: %v", err)
			return
		}

		peerID, err := n.handleConnection(conn)
		if err != nil {
			log.Warnf("failed to handle connection: %v", err)
			conn.CloseWithError(0, err.Error())
			continue
		}
		log.Infof("accepted connection from %s at %s", peerID, conn.RemoteAddr())
	}
}

func WithAddrPort(ep netip.AddrPort) NodeOption {
	return func(n *Node) error {
		n.endpoint = net.UDPAddrFromAddrPort(ep)
		return nil
	}
}

// WithIdentity sets the node's identity from a private key
func WithIdentity(privateKey crypto.PrivateKey) NodeOption {
	return func(n *Node) error {
		var pubkey ic.PubKey
		var privkey ic.PrivKey
		var err error

		// Extract peer ID from private key
		switch key := privateKey.(type) {
		case ed25519.PrivateKey:
			privkey, err = ic.UnmarshalEd25519PrivateKey(key)
			pubkey = privkey.GetPublic()
		default:
			return fmt.Errorf("unsupported key type: %T", privateKey)
		}
		if err != nil {
			return err
		}
		peerID, err := peer.IDFromPublicKey(pubkey)
		if err != nil {
			return err
		}

		n.privateKey = privateKey
		n.peerID = peerID
		return nil
	}
}

// createTLSCertFromKey creates a self-signed certificate from a private key
func createTLSCertFromKey(key crypto.PrivateKey) (*tls.Certificate, error) {
	var publicKey crypto.PublicKey

	switch privateKey := key.(type) {
	case ed25519.PrivateKey:
		publicKey = privateKey.Public()
	default:
		return nil, fmt.Errorf("unsupported key type: %T", key)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, publicKey, key)
	if err != nil {
		return nil, err
	}
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// peerIDFromCertificate extracts a peer ID from a TLS certificate
func peerIDFromCertificate(cert *x509.Certificate) (peer.ID, error) {
	var pubkey ic.PubKey
	var err error

	switch key := cert.PublicKey.(type) {
	case ed25519.PublicKey:
		pubkey, err = ic.UnmarshalEd25519PublicKey(key)
	default:
		return "", fmt.Errorf("unsupported public key type: %T", cert.PublicKey)
	}
	if err != nil {
		return "", err
	}

	return peer.IDFromPublicKey(pubkey)
}
