package node

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"
)

func newTestReceiver(t *testing.T, addr string) *Receiver {
	t.Helper()
	r, err := NewReceiver(addr)
	if err != nil {
		var bindErr *BindError
		if errors.As(err, &bindErr) {
			t.Skipf("cannot bind %s: %v", addr, err)
		}
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newTestSender(t *testing.T, bind string, maxPeers int, hosts ...netip.AddrPort) *Sender {
	t.Helper()
	s, err := NewSender(bind, hosts, maxPeers, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// expect 在一秒内读出下一条消息
func expect(t *testing.T, r *Receiver) Event {
	t.Helper()
	ev, err := r.PeekEvent(time.Second)
	if err != nil {
		t.Fatalf("PeekEvent on %s: %v", r.Addr(), err)
	}
	return ev
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type remoteUpdate struct {
	id Identity
	at Point
	p  Player
}

// recorder 记录渲染回调
type recorder struct {
	mu     sync.Mutex
	local  []Player
	remote []remoteUpdate
}

func (r *recorder) OnLocalUpdate(p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = append(r.local, p)
}

func (r *recorder) OnRemoteUpdate(id Identity, at Point, p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = append(r.remote, remoteUpdate{id, at, p})
}

func (r *recorder) counts() (local, remote int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.local), len(r.remote)
}
