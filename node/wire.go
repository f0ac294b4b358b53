package node

import (
	"fmt"
	"math"
	"net/netip"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxDatagramSize 单个 UDP 负载上限；一个数据报只承载一条消息
const MaxDatagramSize = 65507

// MaxWirePeers Peers 消息最多携带的条目数，保证整条广播不超过 MaxDatagramSize
const MaxWirePeers = 2048

// Kind 消息类型标签，每个数据报自描述
type Kind uint8

const (
	KindPlayerJoin     Kind = 1
	KindID             Kind = 2
	KindPeers          Kind = 3
	KindPlayerPosition Kind = 4
	KindPlayerLeft     Kind = 5
)

var kindNames = map[Kind]string{
	KindPlayerJoin:     "player_join",
	KindID:             "id",
	KindPeers:          "peers",
	KindPlayerPosition: "player_position",
	KindPlayerLeft:     "player_left",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Message 封闭的协议消息集合
type Message interface {
	Kind() Kind
}

// PlayerJoin 请求加入会话（无负载）
type PlayerJoin struct{}

// AssignID host 分配给新节点的身份
type AssignID struct {
	ID Identity
}

// PeerEntry 身份到接收地址的映射项
type PeerEntry struct {
	ID   Identity       `json:"id"`
	Addr netip.AddrPort `json:"addr"`
}

// Peers 完整的成员列表，按身份升序；接收方整体替换本地列表
type Peers struct {
	Entries []PeerEntry
}

// PlayerPosition 一次位置广播（tick）
type PlayerPosition struct {
	Point  Point
	Player Player
}

// PlayerLeft 协议保留；没有任何路径会发送它
type PlayerLeft struct{}

func (PlayerJoin) Kind() Kind     { return KindPlayerJoin }
func (AssignID) Kind() Kind       { return KindID }
func (Peers) Kind() Kind          { return KindPeers }
func (PlayerPosition) Kind() Kind { return KindPlayerPosition }
func (PlayerLeft) Kind() Kind     { return KindPlayerLeft }

// 信封字段编号
const (
	fieldKind   protowire.Number = 1
	fieldID     protowire.Number = 2
	fieldPeer   protowire.Number = 3
	fieldPoint  protowire.Number = 4
	fieldPlayer protowire.Number = 5
)

// Encode 将消息编码为一个数据报负载
func Encode(m Message) ([]byte, error) {
	return AppendMessage(make([]byte, 0, 64), m)
}

// AppendMessage 将消息追加编码到 b
func AppendMessage(b []byte, m Message) ([]byte, error) {
	start := len(b)
	b = appendVarintField(b, fieldKind, uint64(m.Kind()))
	switch v := m.(type) {
	case PlayerJoin, PlayerLeft:
	case AssignID:
		b = appendVarintField(b, fieldID, uint64(v.ID))
	case Peers:
		if len(v.Entries) > MaxWirePeers {
			return nil, fmt.Errorf("%w: %d peers (max %d)", ErrMessageTooLarge, len(v.Entries), MaxWirePeers)
		}
		for _, e := range v.Entries {
			b = protowire.AppendTag(b, fieldPeer, protowire.BytesType)
			b = protowire.AppendBytes(b, appendPeerEntry(nil, e))
		}
	case PlayerPosition:
		b = protowire.AppendTag(b, fieldPoint, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPoint(nil, v.Point))
		b = protowire.AppendTag(b, fieldPlayer, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPlayer(nil, v.Player))
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}
	if len(b)-start > MaxDatagramSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(b)-start)
	}
	return b, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPoint(b []byte, p Point) []byte {
	b = appendVarintField(b, 1, uint64(p.X))
	return appendVarintField(b, 2, uint64(p.Y))
}

func appendPlayer(b []byte, p Player) []byte {
	b = appendVarintField(b, 1, uint64(p.Side))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, appendPoint(nil, p.Coordinates))
	b = appendVarintField(b, 3, uint64(p.Color))
	return appendVarintField(b, 4, uint64(p.ID))
}

func appendPeerEntry(b []byte, e PeerEntry) []byte {
	b = appendVarintField(b, 1, uint64(e.ID))
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Addr.Addr().AsSlice())
	return appendVarintField(b, 3, uint64(e.Addr.Port()))
}

// field 是解码时的一个字段值：varint 在 v 中，bytes 在 raw 中
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	raw []byte
}

func (f field) varint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("field %d: want varint, got wire type %d", f.num, f.typ)
	}
	return f.v, nil
}

func (f field) uint32() (uint32, error) {
	v, err := f.varint()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("field %d: value %d overflows uint32", f.num, v)
	}
	return uint32(v), nil
}

func (f field) bytes() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("field %d: want bytes, got wire type %d", f.num, f.typ)
	}
	return f.raw, nil
}

// walk 依次回调每个字段；未知的线类型按协议规则跳过
func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireErr(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return wireErr(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func wireErr(n int) error {
	return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
}

// Decode 将数据报负载解码为消息
func Decode(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrTruncated)
	}
	var (
		kind      Kind
		id        Identity
		entries   []PeerEntry
		point     Point
		player    Player
		hasKind   bool
		hasID     bool
		hasPoint  bool
		hasPlayer bool
	)
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case fieldKind:
			var v uint64
			if v, err = f.varint(); err == nil {
				if v > math.MaxUint8 {
					return fmt.Errorf("%w: %d", ErrUnknownKind, v)
				}
				kind, hasKind = Kind(v), true
			}
		case fieldID:
			var v uint32
			if v, err = f.uint32(); err == nil {
				id, hasID = Identity(v), true
			}
		case fieldPeer:
			if len(entries) >= MaxWirePeers {
				return fmt.Errorf("%w: more than %d peers", ErrMessageTooLarge, MaxWirePeers)
			}
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var e PeerEntry
				if e, err = decodePeerEntry(raw); err == nil {
					entries = append(entries, e)
				}
			}
		case fieldPoint:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				point, err = decodePoint(raw)
				hasPoint = err == nil
			}
		case fieldPlayer:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				player, err = decodePlayer(raw)
				hasPlayer = err == nil
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !hasKind {
		return nil, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	}

	switch kind {
	case KindPlayerJoin:
		return PlayerJoin{}, nil
	case KindPlayerLeft:
		return PlayerLeft{}, nil
	case KindID:
		if !hasID {
			return nil, fmt.Errorf("%w: id message without identity", ErrTruncated)
		}
		return AssignID{ID: id}, nil
	case KindPeers:
		return Peers{Entries: entries}, nil
	case KindPlayerPosition:
		if !hasPoint || !hasPlayer {
			return nil, fmt.Errorf("%w: position message without point or player", ErrTruncated)
		}
		return PlayerPosition{Point: point, Player: player}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
}

func decodePoint(b []byte) (Point, error) {
	var p Point
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			p.X, err = f.uint32()
		case 2:
			p.Y, err = f.uint32()
		}
		return err
	})
	return p, err
}

func decodePlayer(b []byte) (Player, error) {
	var p Player
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			p.Side, err = f.uint32()
		case 2:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				p.Coordinates, err = decodePoint(raw)
			}
		case 3:
			var v uint32
			if v, err = f.uint32(); err == nil {
				p.Color = PlayerColor(v)
				if !p.Color.Valid() {
					err = fmt.Errorf("player color %d out of palette", v)
				}
			}
		case 4:
			var v uint32
			if v, err = f.uint32(); err == nil {
				p.ID = Identity(v)
			}
		}
		return err
	})
	return p, err
}

func decodePeerEntry(b []byte) (PeerEntry, error) {
	var (
		e    PeerEntry
		ip   netip.Addr
		port uint32
	)
	err := walk(b, func(f field) error {
		var err error
		switch f.num {
		case 1:
			var v uint32
			if v, err = f.uint32(); err == nil {
				e.ID = Identity(v)
			}
		case 2:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var ok bool
				if ip, ok = netip.AddrFromSlice(raw); !ok {
					err = fmt.Errorf("peer address has %d bytes", len(raw))
				}
			}
		case 3:
			if port, err = f.uint32(); err == nil && port > math.MaxUint16 {
				err = fmt.Errorf("peer port %d out of range", port)
			}
		}
		return err
	})
	if err != nil {
		return PeerEntry{}, err
	}
	if !ip.IsValid() {
		return PeerEntry{}, fmt.Errorf("%w: peer entry without address", ErrTruncated)
	}
	e.Addr = netip.AddrPortFrom(ip, uint16(port))
	return e, nil
}
