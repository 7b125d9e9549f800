package peerlink

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func TestManager_ConnectsAndDeliversQueuedLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test listener: %v", err)
	}
	defer ln.Close()

	received := make(chan string, 4)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			received <- scanner.Text()
		}
	}()

	m := NewManager(map[string]string{"Clark": ln.Addr().String()}, 16, 0, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	dropped, found := m.Enqueue("Clark", "AT Bailey +0.1 kiwi +1.0-1.0 1000")
	if !found {
		t.Fatal("expected Clark to be a known neighbor")
	}
	if dropped {
		t.Error("did not expect a drop on first enqueue")
	}

	select {
	case line := <-received:
		if line != "AT Bailey +0.1 kiwi +1.0-1.0 1000" {
			t.Errorf("unexpected line received: %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the link to deliver the queued line")
	}
}

func TestManager_EnqueueUnknownPeer(t *testing.T) {
	m := NewManager(map[string]string{"Clark": "127.0.0.1:1"}, 16, 0, nil, nil)
	if _, found := m.Enqueue("Ghost", "whatever"); found {
		t.Error("expected found=false for an unconfigured peer")
	}
}

func TestManager_LinkReachesConnectedState(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to start test listener: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	m := NewManager(map[string]string{"Jaquez": ln.Addr().String()}, 16, 0, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Links()["Jaquez"].State() == Connected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("link never reached Connected state")
}
