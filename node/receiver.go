package node

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"time"
)

// Event 一个已解码的数据报：消息 + 来源地址 + 字节数
type Event struct {
	Msg Message
	Src netip.AddrPort
	N   int
}

// Receiver 持有绑定的入站 UDP 套接字。
// PollEvent/PeekEvent 共用一个缓冲区，只能由单个 goroutine 调用。
type Receiver struct {
	conn *net.UDPConn
	buf  []byte
}

// NewReceiver 绑定入站地址，如 "0.0.0.0:9999"
func NewReceiver(addr string) (*Receiver, error) {
	conn, err := listenUDP(addr)
	if err != nil {
		return nil, err
	}
	return &Receiver{conn: conn, buf: make([]byte, MaxDatagramSize)}, nil
}

func listenUDP(addr string) (*net.UDPConn, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	return conn, nil
}

// Addr 实际绑定的地址（端口 0 时可取得系统分配的端口）
func (r *Receiver) Addr() netip.AddrPort {
	ap := r.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// PollEvent 阻塞直到收到一个数据报
func (r *Receiver) PollEvent() (Event, error) {
	if err := r.conn.SetReadDeadline(time.Time{}); err != nil {
		return Event{}, classify(err)
	}
	return r.read()
}

// PeekEvent 与 PollEvent 相同，但超时返回 ErrTimedOut
func (r *Receiver) PeekEvent(timeout time.Duration) (Event, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Event{}, classify(err)
	}
	return r.read()
}

func (r *Receiver) read() (Event, error) {
	n, src, err := r.conn.ReadFromUDPAddrPort(r.buf)
	if err != nil {
		return Event{}, classify(err)
	}
	src = netip.AddrPortFrom(src.Addr().Unmap(), src.Port())
	msg, err := Decode(r.buf[:n])
	if err != nil {
		return Event{Src: src, N: n}, &DecodeError{Src: src, Err: err}
	}
	return Event{Msg: msg, Src: src, N: n}, nil
}

// classify 把超时与关闭映射为哨兵错误，其余 IO 错误原样返回
func classify(err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimedOut
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	}
	return err
}

// Close 关闭套接字，阻塞中的 PollEvent 随之返回 ErrClosed
func (r *Receiver) Close() error {
	return r.conn.Close()
}
