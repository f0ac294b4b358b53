package node

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// ParseDirection 解析文本形式的移动意图；quit 为 true 表示请求退出
func ParseDirection(s string) (dir Direction, quit bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "w", "k":
		return DirUp, false
	case "down", "s", "j":
		return DirDown, false
	case "left", "a", "h":
		return DirLeft, false
	case "right", "d", "l":
		return DirRight, false
	case "quit", "q", "exit":
		return DirNone, true
	default:
		return DirNone, false
	}
}

// ReadIntents 逐行读取移动意图（无终端模式）。遇到 quit 时关闭通道；
// EOF 之后通道保持打开直到 ctx 取消，stdin 重定向自 /dev/null 的节点会一直运行。
func ReadIntents(ctx context.Context, r io.Reader) <-chan Direction {
	out := make(chan Direction, 16)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			dir, quit := ParseDirection(sc.Text())
			if quit {
				return
			}
			if dir == DirNone {
				continue
			}
			select {
			case out <- dir:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out
}
