package node

import (
	"net/netip"
	"sort"
	"sync"
)

// Peer 成员表中的一项；Suspect 表示最近一次发送失败
type Peer struct {
	ID      Identity       `json:"id"`
	Addr    netip.AddrPort `json:"addr"`
	Suspect bool           `json:"suspect"`
}

// PeerTable 身份 -> 地址的映射。身份是键，不再依赖列表下标
type PeerTable struct {
	mu     sync.RWMutex
	byID   map[Identity]*Peer
	byAddr map[netip.AddrPort]Identity
	next   Identity
}

// NewPeerTable 创建空成员表
func NewPeerTable() *PeerTable {
	return &PeerTable{
		byID:   make(map[Identity]*Peer),
		byAddr: make(map[netip.AddrPort]Identity),
	}
}

// Assign 为地址分配身份；地址已存在时返回原身份且 fresh=false
func (t *PeerTable) Assign(addr netip.AddrPort, limit int) (id Identity, fresh bool, err error) {
	if addr.Addr().Zone() != "" {
		return 0, false, ErrZonedAddress
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byAddr[addr]; ok {
		return id, false, nil
	}
	if limit > 0 && len(t.byID) >= limit {
		return 0, false, ErrSessionFull
	}
	id = t.next
	t.next++
	t.byID[id] = &Peer{ID: id, Addr: addr}
	t.byAddr[addr] = id
	return id, true, nil
}

// Replace 用 host 广播的列表整体替换本地成员表
func (t *PeerTable) Replace(entries []PeerEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[Identity]*Peer, len(entries))
	t.byAddr = make(map[netip.AddrPort]Identity, len(entries))
	t.next = 0
	for _, e := range entries {
		if old, ok := t.byID[e.ID]; ok {
			delete(t.byAddr, old.Addr)
		}
		t.byID[e.ID] = &Peer{ID: e.ID, Addr: e.Addr}
		t.byAddr[e.Addr] = e.ID
		if e.ID >= t.next {
			t.next = e.ID + 1
		}
	}
}

// MarkSuspect 记录某地址的发送结果
func (t *PeerTable) MarkSuspect(addr netip.AddrPort, suspect bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byAddr[addr]; ok {
		t.byID[id].Suspect = suspect
	}
}

// Entries 按身份升序返回线上格式的列表
func (t *PeerTable) Entries() []PeerEntry {
	peers := t.Snapshot()
	out := make([]PeerEntry, len(peers))
	for i, p := range peers {
		out[i] = PeerEntry{ID: p.ID, Addr: p.Addr}
	}
	return out
}

// Snapshot 返回按身份排序的只读副本
func (t *PeerTable) Snapshot() []Peer {
	t.mu.RLock()
	out := make([]Peer, 0, len(t.byID))
	for _, p := range t.byID {
		out = append(out, *p)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len 当前成员数
func (t *PeerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
