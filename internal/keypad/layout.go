// Package keypad lays out the desktop calculator window and resolves
// pointer positions to keys and history rows. It has no rendering
// dependency; cmd/desk draws what it describes.
package keypad

// Rect is an axis-aligned rectangle in window pixels.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Kind groups keys for colouring.
type Kind int

const (
	KindDigit Kind = iota
	KindOperator
	KindControl
	KindEquals
)

// Key is one keypad button. Name is the keyboard key it stands for, so a
// click and a key press go through the same calculator.ActionForKey path.
type Key struct {
	Label string
	Name  string
	Kind  Kind
	Rect  Rect
}

// Layout is the full window geometry.
type Layout struct {
	Width, Height int

	Expression Rect
	Operand    Rect
	Keys       []Key

	History      Rect
	ClearHistory Rect
	RowHeight    int
}

const (
	keyW      = 80
	keyH      = 72
	gridTop   = 120
	panelX    = 4 * keyW
	panelW    = 300
	rowHeight = 28
	headerH   = 40
)

var grid = [][]struct {
	label, name string
	kind        Kind
	span        int
}{
	{{"C", "Escape", KindControl, 1}, {"<-", "Backspace", KindControl, 1}, {"%", "%", KindControl, 1}, {"/", "/", KindOperator, 1}},
	{{"7", "7", KindDigit, 1}, {"8", "8", KindDigit, 1}, {"9", "9", KindDigit, 1}, {"*", "*", KindOperator, 1}},
	{{"4", "4", KindDigit, 1}, {"5", "5", KindDigit, 1}, {"6", "6", KindDigit, 1}, {"-", "-", KindOperator, 1}},
	{{"1", "1", KindDigit, 1}, {"2", "2", KindDigit, 1}, {"3", "3", KindDigit, 1}, {"+", "+", KindOperator, 1}},
	{{"0", "0", KindDigit, 2}, {".", ".", KindDigit, 1}, {"=", "Enter", KindEquals, 1}},
}

// Default returns the standard window: a 4x5 keypad on the left under the
// readouts and the history panel on the right.
func Default() Layout {
	l := Layout{
		Width:      panelX + panelW,
		Height:     gridTop + len(grid)*keyH,
		Expression: Rect{X: 12, Y: 12, W: panelX - 24, H: 24},
		Operand:    Rect{X: 12, Y: 44, W: panelX - 24, H: 64},
		RowHeight:  rowHeight,
	}

	for row, keys := range grid {
		col := 0
		for _, k := range keys {
			l.Keys = append(l.Keys, Key{
				Label: k.label,
				Name:  k.name,
				Kind:  k.kind,
				Rect: Rect{
					X: col*keyW + 2,
					Y: gridTop + row*keyH + 2,
					W: k.span*keyW - 4,
					H: keyH - 4,
				},
			})
			col += k.span
		}
	}

	l.History = Rect{X: panelX, Y: headerH, W: panelW, H: l.Height - headerH}
	l.ClearHistory = Rect{X: panelX + panelW - 76, Y: 8, W: 68, H: 24}
	return l
}

// HitKey returns the key under (x, y).
func (l Layout) HitKey(x, y int) (Key, bool) {
	for _, k := range l.Keys {
		if k.Rect.Contains(x, y) {
			return k, true
		}
	}
	return Key{}, false
}

// aliases are keyboard keys that share a button with another key.
var aliases = map[string]string{"=": "Enter", "c": "Escape", "C": "Escape"}

// KeyByName finds the key bound to a keyboard key name.
func (l Layout) KeyByName(name string) (Key, bool) {
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, k := range l.Keys {
		if k.Name == name {
			return k, true
		}
	}
	return Key{}, false
}

// VisibleRows is how many history rows fit in the panel.
func (l Layout) VisibleRows() int {
	return l.History.H / l.RowHeight
}

// HistoryRow returns the rectangle of history row i.
func (l Layout) HistoryRow(i int) Rect {
	return Rect{
		X: l.History.X,
		Y: l.History.Y + i*l.RowHeight,
		W: l.History.W,
		H: l.RowHeight,
	}
}

// HitHistoryRow returns the index of the history row under (x, y) when the
// ledger holds n entries.
func (l Layout) HitHistoryRow(x, y, n int) (int, bool) {
	if !l.History.Contains(x, y) {
		return 0, false
	}
	i := (y - l.History.Y) / l.RowHeight
	if i >= n || i >= l.VisibleRows() {
		return 0, false
	}
	return i, true
}
