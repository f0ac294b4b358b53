package node

import (
	"fmt"
	"strings"
)

// MovementMode 越界策略
type MovementMode int

const (
	// MovementClamp 裁剪到 [0,W-1]x[0,H-1]
	MovementClamp MovementMode = iota
	// MovementWrap 越界后从对边出现
	MovementWrap
	// MovementUnbounded 只在原点处裁剪，避免无符号下溢
	MovementUnbounded
)

func (m MovementMode) String() string {
	switch m {
	case MovementClamp:
		return "clamp"
	case MovementWrap:
		return "wrap"
	case MovementUnbounded:
		return "unbounded"
	default:
		return fmt.Sprintf("MovementMode(%d)", int(m))
	}
}

// ParseMovementMode 解析配置中的越界策略名
func ParseMovementMode(s string) (MovementMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clamp", "clamped", "":
		return MovementClamp, nil
	case "wrap", "wrapping":
		return MovementWrap, nil
	case "unbounded":
		return MovementUnbounded, nil
	}
	return MovementClamp, fmt.Errorf("unknown movement mode %q (want clamp, wrap or unbounded)", s)
}

func (m MovementMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MovementMode) UnmarshalText(b []byte) error {
	v, err := ParseMovementMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Movement 移动规则：越界策略 + 网格边界（0 表示该轴无上界）
type Movement struct {
	Mode   MovementMode `json:"mode"`
	Width  uint32       `json:"width"`
	Height uint32       `json:"height"`
}

func (m Movement) validate() error {
	if m.Mode == MovementWrap && (m.Width == 0 || m.Height == 0) {
		return fmt.Errorf("wrap movement needs a non-zero width and height (got %dx%d)", m.Width, m.Height)
	}
	return nil
}

// Move 计算一步移动后的位置：每次只改变一个轴、最多一个单位，结果永不为负
func Move(p Point, dir Direction, m Movement) Point {
	switch dir {
	case DirUp:
		p.Y = step(p.Y, -1, m.Height, m.Mode)
	case DirDown:
		p.Y = step(p.Y, 1, m.Height, m.Mode)
	case DirLeft:
		p.X = step(p.X, -1, m.Width, m.Mode)
	case DirRight:
		p.X = step(p.X, 1, m.Width, m.Mode)
	default:
		// no-op
	}
	return p
}

func step(v uint32, delta int, limit uint32, mode MovementMode) uint32 {
	switch mode {
	case MovementWrap:
		if limit == 0 {
			break
		}
		if delta < 0 {
			return (v%limit + limit - 1) % limit
		}
		return (v%limit + 1) % limit
	case MovementClamp:
		// 已在边界外（运行期缩小了网格）时正向移动保持原地，反向移动逐格退回
		if delta > 0 && limit > 0 && v+1 >= limit {
			return v
		}
	}
	if delta < 0 {
		if v == 0 {
			return 0
		}
		return v - 1
	}
	if v == ^uint32(0) {
		return v
	}
	return v + 1
}
