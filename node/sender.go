package node

import (
	"errors"
	"net"
	"net/netip"

	"go.uber.org/multierr"
)

// Sender 持有出站 UDP 套接字、host 地址与成员表
type Sender struct {
	conn     *net.UDPConn
	hosts    []netip.AddrPort
	peers    *PeerTable
	maxPeers int
	metrics  *Metrics
}

// NewSender 绑定出站地址；hosts 为可能代表 host 的所有地址
func NewSender(bind string, hosts []netip.AddrPort, maxPeers int, m *Metrics) (*Sender, error) {
	conn, err := listenUDP(bind)
	if err != nil {
		return nil, err
	}
	return &Sender{
		conn:     conn,
		hosts:    hostTargets(hosts),
		peers:    NewPeerTable(),
		maxPeers: maxPeers,
		metrics:  m,
	}, nil
}

// hostTargets 去重，并把未指定地址（0.0.0.0 / ::）换成 127.0.0.1
func hostTargets(hosts []netip.AddrPort) []netip.AddrPort {
	seen := make(map[netip.AddrPort]bool, len(hosts))
	out := make([]netip.AddrPort, 0, len(hosts))
	for _, h := range hosts {
		h = sendable(h)
		if !h.IsValid() || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}

func sendable(a netip.AddrPort) netip.AddrPort {
	ip := a.Addr().Unmap()
	if ip.IsUnspecified() {
		ip = netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	return netip.AddrPortFrom(ip, a.Port())
}

// Addr 出站套接字实际绑定的地址
func (s *Sender) Addr() netip.AddrPort {
	ap := s.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Peers 当前成员表的只读副本
func (s *Sender) Peers() []Peer { return s.peers.Snapshot() }

// RegisterSelf 向每个可能代表 host 的地址发送 PlayerJoin
func (s *Sender) RegisterSelf() error {
	b, err := Encode(PlayerJoin{})
	if err != nil {
		return err
	}
	var errs error
	for _, h := range s.hosts {
		errs = multierr.Append(errs, s.send(h, b))
	}
	return errs
}

// RegisterRemoteSocket 仅 host 调用：为 addr 分配身份，发送 ID，
// 然后把完整成员表广播给所有成员（包括新成员）。
// 同一地址重复注册不会分配新身份，只重发原身份与成员表。
func (s *Sender) RegisterRemoteSocket(addr netip.AddrPort) (Identity, error) {
	addr = sendable(addr)
	id, fresh, err := s.peers.Assign(addr, s.maxPeers)
	if err != nil {
		return 0, err
	}
	if fresh {
		Log.Infow("peer registered", "id", id, "addr", addr)
	} else {
		Log.Debugw("peer re-registered", "id", id, "addr", addr)
	}
	s.metrics.SetPeers(s.peers.Len())

	b, err := Encode(AssignID{ID: id})
	if err != nil {
		return id, err
	}
	errs := s.send(addr, b)
	return id, multierr.Append(errs, s.broadcast(Peers{Entries: s.peers.Entries()}))
}

// ReplacePeers 非 host 节点用收到的 Peers 整体替换本地成员表
func (s *Sender) ReplacePeers(entries []PeerEntry) {
	s.peers.Replace(entries)
	s.metrics.SetPeers(s.peers.Len())
}

// Tick 将位置广播给成员表中的每个地址；尽力而为，无确认无重试
func (s *Sender) Tick(pos PlayerPosition) error {
	s.metrics.IncTick()
	return s.broadcast(pos)
}

func (s *Sender) broadcast(m Message) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	var errs error
	for _, p := range s.peers.Snapshot() {
		errs = multierr.Append(errs, s.send(p.Addr, b))
	}
	return errs
}

// send 单个目的地址的发送；失败只标记该 peer，不影响其他 peer
func (s *Sender) send(addr netip.AddrPort, b []byte) error {
	_, err := s.conn.WriteToUDPAddrPort(b, addr)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		s.peers.MarkSuspect(addr, true)
		s.metrics.IncSendError()
		Log.Warnw("send failed", "addr", addr, "err", err)
		return &SendError{Addr: addr, Err: err}
	}
	s.peers.MarkSuspect(addr, false)
	return nil
}

// Close 关闭出站套接字
func (s *Sender) Close() error {
	return s.conn.Close()
}
