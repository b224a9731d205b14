package blockcast

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"net/netip"
	"testing"
	"time"
)

func TestCertificate(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	cert, err := createTLSCertFromKey(privateKey)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	peerID, err := peerIDFromCertificate(parsed)
	if err != nil {
		t.Fatal(err)
	}

	node, err := NewNode(
		WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")),
		WithIdentity(privateKey),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer node.Close()

	if node.ID() != peerID {
		t.Fatalf("certificate peer ID %s does not match node peer ID %s", peerID, node.ID())
	}
}

func TestUniqueConnection(t *testing.T) {
	n1, err := NewNode(WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	defer n1.Close()
	n2, err := NewNode(WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	defer n2.Close()

	if err = n1.Connect(context.Background(), n2.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	if err = n1.Connect(context.Background(), n2.LocalAddr()); err == nil {
		t.Fatal("expected the second connection to the same peer to fail")
	}
}

func TestSprayAndCollect(t *testing.T) {
	sender, err := NewNode(WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	defer sender.Close()
	receiver, err := NewNode(WithAddrPort(netip.MustParseAddrPort("127.0.0.1:0")))
	if err != nil {
		t.Fatal(err)
	}
	defer receiver.Close()

	collector := NewCollector(receiver)
	if err = receiver.Connect(context.Background(), sender.LocalAddr()); err != nil {
		t.Fatal(err)
	}
	// Wait until the sender side has registered the connection
	for i := 0; sender.PeerCount() == 0; i++ {
		if i > 500 {
			t.Fatal("sender never saw the receiver connect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	message := make([]byte, 500)
	for i := range message {
		message[i] = byte(i*7 + 3)
	}
	snd, err := NewSender(sender, message, 50)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go func() {
		for ctx.Err() == nil {
			snd.Announce()
			if err := snd.Spray(4); err != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()

	got, err := collector.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, message) {
		t.Fatal("recovered message does not match the original")
	}
	if collector.Received() < snd.enc.RowCount() {
		t.Fatalf("recovered from only %d blocks", collector.Received())
	}
}
