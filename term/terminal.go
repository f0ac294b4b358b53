// Package term 终端渲染与键盘输入：协议核心之外的一层薄包装
package term

import (
	"context"
	"strings"
	"sync"

	"github.com/nsf/termbox-go"

	"gridpeer/node"
)

var colors = map[node.PlayerColor]termbox.Attribute{
	node.ColorBlue:    termbox.ColorBlue,
	node.ColorRed:     termbox.ColorRed,
	node.ColorGreen:   termbox.ColorGreen,
	node.ColorYellow:  termbox.ColorYellow,
	node.ColorCyan:    termbox.ColorCyan,
	node.ColorMagenta: termbox.ColorMagenta,
	node.ColorWhite:   termbox.ColorWhite,
	node.ColorBlack:   termbox.ColorBlack,
}

// Attribute 调色板到终端颜色的映射
func Attribute(c node.PlayerColor) termbox.Attribute {
	if a, ok := colors[c]; ok {
		return a
	}
	return termbox.ColorDefault
}

// Terminal 实现 node.Renderer。termbox 不是并发安全的，所有绘制由 mu 串行化
type Terminal struct {
	mu      sync.Mutex
	local   *node.Player
	remotes map[node.Identity]node.Player
}

// Open 初始化 termbox；调用方负责 Close
func Open() (*Terminal, error) {
	if err := termbox.Init(); err != nil {
		return nil, err
	}
	termbox.SetInputMode(termbox.InputEsc)
	termbox.Clear(termbox.ColorDefault, termbox.ColorBlack)
	_ = termbox.Flush()
	return &Terminal{remotes: make(map[node.Identity]node.Player)}, nil
}

// Close 恢复终端
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	termbox.Close()
}

func (t *Terminal) OnLocalUpdate(p node.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.local != nil {
		paint(*t.local, ' ')
	}
	t.local = &p
	t.redraw()
}

func (t *Terminal) OnRemoteUpdate(id node.Identity, at node.Point, p node.Player) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.remotes[id]; ok {
		paint(old, ' ')
	}
	p.Coordinates = at
	t.remotes[id] = p
	t.redraw()
}

// redraw 远端先画，本地最后画，本地方块始终在最上层
func (t *Terminal) redraw() {
	for _, p := range t.remotes {
		paint(p, '█')
	}
	if t.local != nil {
		paint(*t.local, '█')
	}
	_ = termbox.Flush()
}

// paint 方块每行占 side*2 个字符，抵消字符单元的宽高比
func paint(p node.Player, ch rune) {
	fg := Attribute(p.Color)
	row := []rune(strings.Repeat(string(ch), int(p.Side)*2))
	for dy := 0; dy < int(p.Side); dy++ {
		for dx, r := range row {
			termbox.SetCell(int(p.Coordinates.X)+dx, int(p.Coordinates.Y)+dy, r, fg|termbox.AttrBold, termbox.ColorBlack)
		}
	}
}

// KeyDirection 键位到移动意图的映射；quit 为 true 表示退出键
func KeyDirection(ev termbox.Event) (dir node.Direction, quit bool) {
	if ev.Type != termbox.EventKey {
		return node.DirNone, false
	}
	switch ev.Key {
	case termbox.KeyArrowUp:
		return node.DirUp, false
	case termbox.KeyArrowDown:
		return node.DirDown, false
	case termbox.KeyArrowLeft:
		return node.DirLeft, false
	case termbox.KeyArrowRight:
		return node.DirRight, false
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return node.DirNone, true
	}
	if ev.Ch != 0 {
		return node.ParseDirection(string(ev.Ch))
	}
	return node.DirNone, false
}

// Intents 轮询键盘，转成移动意图；退出键、ctx 取消或 termbox 出错时关闭通道
func (t *Terminal) Intents(ctx context.Context) <-chan node.Direction {
	return pollIntents(ctx, termbox.PollEvent, termbox.Interrupt, t.resize)
}

func (t *Terminal) resize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	termbox.Clear(termbox.ColorDefault, termbox.ColorBlack)
	t.redraw()
}

// pollIntents 的 interrupt 与 termbox.Interrupt 一样是无缓冲发送，
// 只有 poll 仍在被调用时才会返回；轮询自行结束后不再发出中断，
// 已经发出的那一个由退出路径消费掉。
func pollIntents(ctx context.Context, poll func() termbox.Event, interrupt func(), resize func()) <-chan node.Direction {
	out := make(chan node.Direction, 16)
	done := make(chan struct{})
	var (
		mu           sync.Mutex
		stopped      bool
		interrupting bool
	)

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		mu.Lock()
		if stopped {
			mu.Unlock()
			return
		}
		interrupting = true
		mu.Unlock()
		interrupt()
	}()

	go func() {
		defer close(out)
		interrupted := forwardKeys(ctx, poll, resize, out)

		mu.Lock()
		stopped = true
		pending := interrupting && !interrupted
		mu.Unlock()
		close(done)
		for pending && poll().Type != termbox.EventInterrupt {
		}
	}()
	return out
}

// forwardKeys 把按键转发到 out；返回 true 表示因收到中断事件而结束
func forwardKeys(ctx context.Context, poll func() termbox.Event, resize func(), out chan<- node.Direction) bool {
	for {
		ev := poll()
		switch ev.Type {
		case termbox.EventInterrupt:
			return true
		case termbox.EventError:
			return false
		case termbox.EventResize:
			resize()
			continue
		}
		dir, quit := KeyDirection(ev)
		if quit {
			return false
		}
		if dir == node.DirNone {
			continue
		}
		select {
		case out <- dir:
		case <-ctx.Done():
			return false
		}
	}
}
