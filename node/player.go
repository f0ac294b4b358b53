package node

import "fmt"

// Identity 玩家身份：由 host 在加入时顺序分配（从 0 开始），之后不可变
type Identity uint32

// Point 网格坐标（非负整数）
type Point struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

func (p Point) String() string { return fmt.Sprintf("(%d,%d)", p.X, p.Y) }

// Direction 本地移动意图
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
	DirLeft
	DirRight
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	case DirRight:
		return "right"
	default:
		return "none"
	}
}

// PlayerColor 8 色调色板，仅用于渲染区分身份
type PlayerColor uint8

const (
	ColorBlue PlayerColor = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorCyan
	ColorMagenta
	ColorWhite
	ColorBlack
)

var palette = [...]PlayerColor{
	ColorBlue, ColorRed, ColorGreen, ColorYellow,
	ColorCyan, ColorMagenta, ColorWhite, ColorBlack,
}

var colorNames = [...]string{"Blue", "Red", "Green", "Yellow", "Cyan", "Magenta", "White", "Black"}

func (c PlayerColor) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("PlayerColor(%d)", uint8(c))
}

// Valid 判断颜色是否属于调色板
func (c PlayerColor) Valid() bool { return int(c) < len(palette) }

// ColorFor 按身份取色：palette[id mod 8]
func ColorFor(id Identity) PlayerColor {
	return palette[int(id)%len(palette)]
}

// Player 玩家方块。远端玩家的副本只用于渲染，每次收到更新整体覆盖
type Player struct {
	Side        uint32      `json:"side"`
	Coordinates Point       `json:"coordinates"`
	Color       PlayerColor `json:"color"`
	ID          Identity    `json:"id"`
}

// NewPlayer 以身份创建玩家：颜色由身份推导，出生点按身份错开
func NewPlayer(id Identity, side uint32, mv Movement) Player {
	return Player{
		Side:        side,
		Coordinates: spawnPoint(id, side, mv),
		Color:       ColorFor(id),
		ID:          id,
	}
}

func spawnPoint(id Identity, side uint32, mv Movement) Point {
	x := uint32(id) * side * 2
	if mv.Width > 0 {
		x %= mv.Width
	}
	return Point{X: x, Y: 0}
}
