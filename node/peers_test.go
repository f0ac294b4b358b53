package node

import (
	"errors"
	"net/netip"
	"reflect"
	"testing"
)

func TestPeerTableAssign(t *testing.T) {
	pt := NewPeerTable()
	a := netip.MustParseAddrPort("10.0.0.1:9999")
	b := netip.MustParseAddrPort("10.0.0.2:9999")

	for i, addr := range []netip.AddrPort{a, b} {
		id, fresh, err := pt.Assign(addr, 0)
		if err != nil || !fresh || id != Identity(i) {
			t.Fatalf("Assign(%s) = %d, %v, %v; want %d, true, nil", addr, id, fresh, err, i)
		}
	}

	id, fresh, err := pt.Assign(a, 0)
	if err != nil || fresh || id != 0 {
		t.Errorf("re-Assign(a) = %d, %v, %v; want 0, false, nil", id, fresh, err)
	}
	if pt.Len() != 2 {
		t.Errorf("Len() = %d after duplicate, want 2", pt.Len())
	}

	if _, _, err := pt.Assign(netip.MustParseAddrPort("10.0.0.3:9999"), 2); !errors.Is(err, ErrSessionFull) {
		t.Errorf("Assign over limit error = %v, want ErrSessionFull", err)
	}
}

func TestPeerTableRejectsZonedAddress(t *testing.T) {
	pt := NewPeerTable()
	addr := netip.MustParseAddrPort("[fe80::1%eth0]:9999")
	if _, _, err := pt.Assign(addr, 0); !errors.Is(err, ErrZonedAddress) {
		t.Fatalf("Assign(%s) error = %v, want ErrZonedAddress", addr, err)
	}
	if pt.Len() != 0 {
		t.Errorf("Len() = %d after rejected assign, want 0", pt.Len())
	}
	if _, fresh, err := pt.Assign(netip.MustParseAddrPort("[fe80::1]:9999"), 0); err != nil || !fresh {
		t.Errorf("Assign without zone = %v, %v; want fresh", fresh, err)
	}
}

func TestPeerTableReplace(t *testing.T) {
	pt := NewPeerTable()
	_, _, _ = pt.Assign(netip.MustParseAddrPort("10.0.0.9:9999"), 0)

	entries := []PeerEntry{
		{ID: 2, Addr: netip.MustParseAddrPort("10.0.0.3:9999")},
		{ID: 0, Addr: netip.MustParseAddrPort("10.0.0.1:9999")},
	}
	pt.Replace(entries)

	want := []PeerEntry{entries[1], entries[0]}
	if got := pt.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}

	pt.MarkSuspect(entries[0].Addr, true)
	snap := pt.Snapshot()
	if !snap[1].Suspect || snap[0].Suspect {
		t.Errorf("Snapshot() suspect flags = %+v", snap)
	}

	id, fresh, _ := pt.Assign(netip.MustParseAddrPort("10.0.0.4:9999"), 0)
	if !fresh || id != 3 {
		t.Errorf("Assign after Replace = %d, %v; want 3, true", id, fresh)
	}
}
