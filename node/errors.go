package node

import (
	"errors"
	"fmt"
	"net/netip"
)

var (
	// ErrTimedOut PeekEvent 在超时前没有收到数据报；属于正常控制流
	ErrTimedOut = errors.New("node: timed out")
	// ErrUnknownKind 数据报的消息类型不在协议定义的集合里
	ErrUnknownKind = errors.New("node: unknown message kind")
	// ErrTruncated 数据报在字段中间结束
	ErrTruncated = errors.New("node: truncated message")
	// ErrMessageTooLarge 编码结果超过单个数据报的上限
	ErrMessageTooLarge = errors.New("node: message exceeds datagram size")
	// ErrSessionFull host 已达到 MaxPeers
	ErrSessionFull = errors.New("node: session is full")
	// ErrZonedAddress 带 zone 的 IPv6 地址只在本机有意义，不能写进成员表
	ErrZonedAddress = errors.New("node: zoned address cannot be shared")
	// ErrNotActive 尚未拿到身份时不能移动
	ErrNotActive = errors.New("node: player has no identity yet")
	// ErrClosed 端点已关闭
	ErrClosed = errors.New("node: endpoint closed")
)

// BindError 本地端口绑定失败，启动阶段致命
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// DecodeError 收到无法解析的数据报；记录后丢弃
type DecodeError struct {
	Src netip.AddrPort
	Err error
}

func (e *DecodeError) Error() string {
	if !e.Src.IsValid() {
		return fmt.Sprintf("decode: %v", e.Err)
	}
	return fmt.Sprintf("decode datagram from %s: %v", e.Src, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// SendError 向单个目的地址发送失败；该 peer 被标记为可疑，其余 peer 不受影响
type SendError struct {
	Addr netip.AddrPort
	Err  error
}

func (e *SendError) Error() string { return fmt.Sprintf("send to %s: %v", e.Addr, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }
