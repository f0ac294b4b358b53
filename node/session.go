package node

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"
	"time"
)

// DefaultReceiverPort 会话范围内约定的接收端口，用来从来源 IP 重建对端的接收地址
const DefaultReceiverPort = 9999

// Role 节点在会话中的角色
type Role int

const (
	RoleHost Role = iota
	RoleJoiner
)

func (r Role) String() string {
	if r == RoleHost {
		return "host"
	}
	return "joiner"
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Status 成员状态机：Unregistered -> AwaitingID -> Active；接收套接字故障时 Disconnected
type Status int

const (
	StatusUnregistered Status = iota
	StatusAwaitingID
	StatusActive
	StatusDisconnected
)

func (s Status) String() string {
	switch s {
	case StatusUnregistered:
		return "unregistered"
	case StatusAwaitingID:
		return "awaiting_id"
	case StatusActive:
		return "active"
	case StatusDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Renderer 渲染协作方：核心在本地/远端玩家变化后回调
type Renderer interface {
	OnLocalUpdate(p Player)
	OnRemoteUpdate(id Identity, at Point, p Player)
}

// Renderers 把回调分发给多个渲染方
type Renderers []Renderer

func (rs Renderers) OnLocalUpdate(p Player) {
	for _, r := range rs {
		r.OnLocalUpdate(p)
	}
}

func (rs Renderers) OnRemoteUpdate(id Identity, at Point, p Player) {
	for _, r := range rs {
		r.OnRemoteUpdate(id, at, p)
	}
}

// Config 会话配置
type Config struct {
	Role         Role
	ReceiverPort uint16
	Side         uint32
	Movement     Movement
	// PollInterval 接收循环每次等待数据报的上限，决定响应 ctx 取消的速度
	PollInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.ReceiverPort == 0 {
		c.ReceiverPort = DefaultReceiverPort
	}
	if c.Side == 0 {
		c.Side = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
}

// Session 单个节点的会话状态：本地玩家、远端玩家快照与成员状态。
// 接收 goroutine 与本地输入 goroutine 共享，所有字段由 mu 保护。
type Session struct {
	cfg     Config
	recv    *Receiver
	send    *Sender
	render  Renderer
	metrics *Metrics

	mu       sync.RWMutex
	status   Status
	self     Player
	remotes  map[Identity]Player
	movement Movement
}

// NewSession 创建会话；render 可以为 nil
func NewSession(cfg Config, recv *Receiver, send *Sender, render Renderer, m *Metrics) (*Session, error) {
	cfg.setDefaults()
	if err := cfg.Movement.validate(); err != nil {
		return nil, err
	}
	if render == nil {
		render = Renderers(nil)
	}
	return &Session{
		cfg:      cfg,
		recv:     recv,
		send:     send,
		render:   render,
		metrics:  m,
		remotes:  make(map[Identity]Player),
		movement: cfg.Movement,
	}, nil
}

// Join 进入会话：Unregistered -> AwaitingID。
// host 把自己的接收地址当作第一个远端注册，从而经由正常路径收到 ID(0)；
// 其他节点向 host 发送 PlayerJoin。
func (s *Session) Join() error {
	s.mu.Lock()
	if s.status != StatusUnregistered {
		s.mu.Unlock()
		return nil
	}
	s.status = StatusAwaitingID
	s.mu.Unlock()

	if s.cfg.Role == RoleHost {
		_, err := s.send.RegisterRemoteSocket(s.recv.Addr())
		return err
	}
	return s.send.RegisterSelf()
}

// Move 处理本地移动意图：计算新位置、更新本地玩家并广播
func (s *Session) Move(dir Direction) (Point, error) {
	s.mu.Lock()
	if s.status != StatusActive {
		s.mu.Unlock()
		return Point{}, ErrNotActive
	}
	s.self.Coordinates = Move(s.self.Coordinates, dir, s.movement)
	snap := s.self
	s.mu.Unlock()

	s.render.OnLocalUpdate(snap)
	return snap.Coordinates, s.send.Tick(PlayerPosition{Point: snap.Coordinates, Player: snap})
}

// handle 分发一个入站事件；只由接收 goroutine 调用
func (s *Session) handle(ev Event) {
	s.metrics.IncReceived(ev.Msg.Kind())
	switch m := ev.Msg.(type) {
	case PlayerJoin:
		s.handleJoin(ev.Src)
	case AssignID:
		s.assign(m.ID)
	case Peers:
		s.applyPeers(m, ev.Src)
	case PlayerPosition:
		s.applyPosition(m)
	case PlayerLeft:
		Log.Infow("player left notice ignored", "src", ev.Src)
	}
}

// handleJoin host 侧：用来源 IP + 约定接收端口重建新节点的接收地址
func (s *Session) handleJoin(src netip.AddrPort) {
	if s.cfg.Role != RoleHost {
		Log.Debugw("ignoring join on non-host node", "src", src)
		return
	}
	addr := receiverAddrFor(src, s.cfg.ReceiverPort)
	id, err := s.send.RegisterRemoteSocket(addr)
	switch {
	case errors.Is(err, ErrSessionFull), errors.Is(err, ErrZonedAddress):
		s.metrics.IncJoinRejected()
		Log.Warnw("join rejected", "addr", addr, "err", err)
		return
	case err != nil:
		Log.Warnw("join answered with errors", "addr", addr, "id", id, "err", err)
	}
	s.metrics.IncJoin()
	s.announce()
}

func receiverAddrFor(src netip.AddrPort, port uint16) netip.AddrPort {
	return netip.AddrPortFrom(src.Addr().Unmap(), port)
}

// assign AwaitingID -> Active：身份只分配一次
func (s *Session) assign(id Identity) {
	s.mu.Lock()
	if s.status == StatusActive {
		cur := s.self.ID
		s.mu.Unlock()
		if cur != id {
			Log.Warnw("ignoring second identity", "have", cur, "got", id)
		}
		return
	}
	s.self = NewPlayer(id, s.cfg.Side, s.movement)
	s.status = StatusActive
	delete(s.remotes, id)
	snap := s.self
	n := len(s.remotes)
	s.mu.Unlock()

	s.metrics.SetRemotes(n)
	Log.Infow("identity assigned", "id", id, "color", snap.Color)
	s.render.OnLocalUpdate(snap)
	if s.send.peers.Len() > 0 {
		s.announce()
	}
}

// applyPeers 非 host 节点整体替换成员表。
// 第一项（host）的 IP 用数据报的来源 IP 修正，因为 host 登记自己时只知道回环地址。
func (s *Session) applyPeers(m Peers, src netip.AddrPort) {
	if s.cfg.Role == RoleHost {
		return
	}
	entries := patchHostEntry(m.Entries, src)
	s.send.ReplacePeers(entries)
	Log.Debugw("peer list replaced", "peers", len(entries))

	s.mu.RLock()
	active := s.status == StatusActive
	s.mu.RUnlock()
	if active {
		s.announce()
	}
}

func patchHostEntry(in []PeerEntry, src netip.AddrPort) []PeerEntry {
	entries := make([]PeerEntry, len(in))
	copy(entries, in)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	if len(entries) > 0 && src.IsValid() {
		entries[0].Addr = netip.AddrPortFrom(src.Addr().Unmap(), entries[0].Addr.Port())
	}
	return entries
}

// applyPosition 远端快照整体覆盖；身份与自己相同则修正本地玩家
func (s *Session) applyPosition(m PlayerPosition) {
	p := m.Player
	p.Coordinates = m.Point

	s.mu.Lock()
	if s.status == StatusActive && p.ID == s.self.ID {
		s.self.Coordinates = m.Point
		snap := s.self
		s.mu.Unlock()
		s.render.OnLocalUpdate(snap)
		return
	}
	s.remotes[p.ID] = p
	n := len(s.remotes)
	s.mu.Unlock()

	s.metrics.SetRemotes(n)
	s.render.OnRemoteUpdate(p.ID, m.Point, p)
}

// announce 广播当前位置，让新成员无需等待移动就能看到本节点
func (s *Session) announce() {
	s.mu.RLock()
	if s.status != StatusActive {
		s.mu.RUnlock()
		return
	}
	snap := s.self
	s.mu.RUnlock()
	if err := s.send.Tick(PlayerPosition{Point: snap.Coordinates, Player: snap}); err != nil {
		Log.Warnw("announce failed", "err", err)
	}
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Status 当前成员状态
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Self 本地玩家的副本；ok 为 false 表示尚未拿到身份
func (s *Session) Self() (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.self, s.status == StatusActive
}

// Movement 当前移动规则
func (s *Session) Movement() Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movement
}

// SetMovement 运行期调整移动规则
func (s *Session) SetMovement(m Movement) error {
	if err := m.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.movement = m
	s.mu.Unlock()
	return nil
}

// Snapshot 会话的一致只读视图
type Snapshot struct {
	Role     Role     `json:"role"`
	Status   Status   `json:"status"`
	Self     *Player  `json:"self,omitempty"`
	Remotes  []Player `json:"remotes"`
	Peers    []Peer   `json:"peers"`
	Movement Movement `json:"movement"`
}

// Snapshot 在一次加锁内读取全部字段，避免跨字段的撕裂读
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Role:     s.cfg.Role,
		Status:   s.status,
		Remotes:  make([]Player, 0, len(s.remotes)),
		Movement: s.movement,
	}
	if s.status == StatusActive {
		self := s.self
		snap.Self = &self
	}
	for _, p := range s.remotes {
		snap.Remotes = append(snap.Remotes, p)
	}
	s.mu.RUnlock()

	sort.Slice(snap.Remotes, func(i, j int) bool { return snap.Remotes[i].ID < snap.Remotes[j].ID })
	snap.Peers = s.send.Peers()
	return snap
}
