package node

import (
	"context"
	"errors"
)

// Run 接收循环：每次最多等待 PollInterval 取一个事件并串行分发。
// 解码失败记录后丢弃；接收套接字故障使会话进入 Disconnected 并返回。
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ev, err := s.recv.PeekEvent(s.cfg.PollInterval)
		var decErr *DecodeError
		switch {
		case err == nil:
			s.handle(ev)
		case errors.Is(err, ErrTimedOut):
		case errors.As(err, &decErr):
			s.metrics.IncDecodeError()
			Log.Warnw("dropping datagram", "src", decErr.Src, "bytes", ev.N, "err", decErr.Err)
		case errors.Is(err, ErrClosed):
			s.setStatus(StatusDisconnected)
			return nil
		default:
			s.setStatus(StatusDisconnected)
			Log.Errorw("receive failed, node disconnected", "err", err)
			return err
		}
	}
}

// RunInput 本地输入循环：依次消费移动意图（与接收循环并行），
// 通道关闭或 ctx 取消时返回。
func (s *Session) RunInput(ctx context.Context, intents <-chan Direction) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case dir, ok := <-intents:
			if !ok {
				return nil
			}
			if dir == DirNone {
				continue
			}
			if _, err := s.Move(dir); err != nil {
				if errors.Is(err, ErrNotActive) {
					Log.Debugw("move ignored before identity", "dir", dir)
					continue
				}
				Log.Warnw("tick delivered with errors", "dir", dir, "err", err)
			}
		}
	}
}
