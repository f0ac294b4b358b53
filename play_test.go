package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"gridpeer/node"
)

func freeTCPAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func waitForStatus(t *testing.T, url string, want int) {
	t.Helper()
	client := &http.Client{Timeout: 500 * time.Millisecond}
	deadline := time.Now().Add(3 * time.Second)
	got := 0
	for time.Now().Before(deadline) {
		if resp, err := client.Get(url); err == nil {
			got = resp.StatusCode
			_ = resp.Body.Close()
			if got == want {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("GET %s = %d, want %d", url, got, want)
}

func TestServeKeepsRunningAfterReceiverFails(t *testing.T) {
	recv, err := node.NewReceiver("127.0.0.1:0")
	if err != nil {
		var bindErr *node.BindError
		if errors.As(err, &bindErr) {
			t.Skipf("cannot bind: %v", err)
		}
		t.Fatal(err)
	}
	defer recv.Close()

	metrics := node.NewMetrics()
	send, err := node.NewSender("127.0.0.1:0", []netip.AddrPort{recv.Addr()}, 8, metrics)
	if err != nil {
		t.Fatal(err)
	}
	defer send.Close()

	session, err := node.NewSession(node.Config{
		Role:         node.RoleHost,
		ReceiverPort: recv.Addr().Port(),
		Movement:     node.Movement{Mode: node.MovementClamp, Width: 80, Height: 24},
		PollInterval: 20 * time.Millisecond,
	}, recv, send, nil, metrics)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &Config{admin: freeTCPAddr(t)}
	intents := make(chan node.Direction)
	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), cfg, session, recv, metrics, nil, intents)
	}()

	health := "http://" + cfg.admin + "/healthz"
	waitForStatus(t, health, http.StatusOK)

	_ = recv.Close()
	waitForStatus(t, health, http.StatusServiceUnavailable)
	if st := session.Status(); st != node.StatusDisconnected {
		t.Errorf("status = %s, want disconnected", st)
	}

	select {
	case err := <-done:
		t.Fatalf("serve returned after receiver failure: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	// 输入循环仍在消费意图
	select {
	case intents <- node.DirDown:
	case <-time.After(time.Second):
		t.Fatal("input loop stopped after receiver failure")
	}

	close(intents)
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after input closed")
	}
}
