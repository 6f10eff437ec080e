package main

import (
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"

	"go-chi-calculator/internal/calculator"
	"go-chi-calculator/internal/history"
	"go-chi-calculator/internal/keypad"
)

// flashTicks is how long a pressed key stays highlighted at 60 TPS.
const flashTicks = 6

var (
	colorBackground = color.RGBA{0x1e, 0x1e, 0x24, 0xff}
	colorPanel      = color.RGBA{0x26, 0x26, 0x2e, 0xff}
	colorRowHover   = color.RGBA{0x33, 0x33, 0x3d, 0xff}
	colorFlash      = color.RGBA{0xff, 0xff, 0xff, 0x40}
	keyColors       = map[keypad.Kind]color.RGBA{
		keypad.KindDigit:    {0x3a, 0x3a, 0x44, 0xff},
		keypad.KindOperator: {0xf0, 0x9a, 0x36, 0xff},
		keypad.KindControl:  {0x5a, 0x5a, 0x66, 0xff},
		keypad.KindEquals:   {0x2f, 0x8f, 0x5b, 0xff},
	}
)

// controlKeys are the keys that produce no input characters.
var controlKeys = []struct {
	key  ebiten.Key
	name string
}{
	{ebiten.KeyEnter, "Enter"},
	{ebiten.KeyNumpadEnter, "Enter"},
	{ebiten.KeyEscape, "Escape"},
	{ebiten.KeyBackspace, "Backspace"},
}

// The debug font only covers ASCII.
var asciiSymbols = strings.NewReplacer("−", "-", "×", "*", "÷", "/")

// game drives one calculator window. It is the display sink for the engine
// and the render sink for the ledger.
type game struct {
	layout keypad.Layout
	engine *calculator.Engine
	ledger *history.Ledger
	logger *zap.Logger
	flash  keypad.Flash

	readout calculator.Readout
	entries []history.Entry

	text *ebiten.Image
}

func (g *game) Show(r calculator.Readout) { g.readout = r }

func (g *game) ShowHistory(entries []history.Entry) { g.entries = entries }

func (g *game) Update() error {
	g.flash.Tick()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.click(ebiten.CursorPosition())
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		g.press(string(r))
	}
	for _, k := range controlKeys {
		if inpututil.IsKeyJustPressed(k.key) {
			g.press(k.name)
		}
	}
	return nil
}

func (g *game) click(x, y int) {
	if k, ok := g.layout.HitKey(x, y); ok {
		g.press(k.Name)
		return
	}

	if g.layout.ClearHistory.Contains(x, y) {
		if err := g.ledger.Clear(); err != nil {
			g.logger.Error("clearing history failed", zap.Error(err))
		}
		return
	}

	if i, ok := g.layout.HitHistoryRow(x, y, len(g.entries)); ok {
		if result, ok := g.ledger.SelectEntry(i); ok {
			g.engine.LoadOperand(result)
		}
	}
}

// press routes a keyboard key name through the same path as a click.
func (g *game) press(name string) {
	action, ok := calculator.ActionForKey(name)
	if !ok {
		return
	}

	if k, ok := g.layout.KeyByName(name); ok {
		g.flash.Press(k.Name, flashTicks)
	}

	out, err := g.engine.Dispatch(action)
	if err != nil {
		g.logger.Error("saving history failed", zap.Error(err))
	}
	if out.DivisionByZero {
		g.logger.Debug("division by zero")
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	ebitenutil.DebugPrintAt(screen, asciiSymbols.Replace(g.readout.Expression), g.layout.Expression.X, g.layout.Expression.Y)

	scale := 3.0
	if g.readout.Compact {
		scale = 2.0
	}
	g.drawText(screen, g.readout.Operand, g.layout.Operand, scale)

	for _, k := range g.layout.Keys {
		r := k.Rect
		vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), keyColors[k.Kind], false)
		if g.flash.Active(k.Name) {
			vector.DrawFilledRect(screen, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), colorFlash, false)
		}
		ebitenutil.DebugPrintAt(screen, k.Label, r.X+r.W/2-3*len(k.Label), r.Y+r.H/2-8)
	}

	g.drawHistory(screen)
}

func (g *game) drawHistory(screen *ebiten.Image) {
	p := g.layout.History
	vector.DrawFilledRect(screen, float32(p.X), 0, float32(p.W), float32(g.layout.Height), colorPanel, false)
	ebitenutil.DebugPrintAt(screen, "History", p.X+8, 12)

	c := g.layout.ClearHistory
	vector.StrokeRect(screen, float32(c.X), float32(c.Y), float32(c.W), float32(c.H), 1, keyColors[keypad.KindControl], false)
	ebitenutil.DebugPrintAt(screen, "Clear", c.X+16, c.Y+4)

	if len(g.entries) == 0 {
		ebitenutil.DebugPrintAt(screen, "History is empty", p.X+8, p.Y+8)
		return
	}

	mx, my := ebiten.CursorPosition()
	for i, e := range g.entries {
		if i >= g.layout.VisibleRows() {
			break
		}
		row := g.layout.HistoryRow(i)
		if row.Contains(mx, my) {
			vector.DrawFilledRect(screen, float32(row.X), float32(row.Y), float32(row.W), float32(row.H), colorRowHover, false)
		}
		line := asciiSymbols.Replace(e.Expression) + " = " + calculator.FormatDisplay(e.Result)
		ebitenutil.DebugPrintAt(screen, line, row.X+8, row.Y+6)
	}
}

// drawText prints s right-aligned in r, magnified by scale.
func (g *game) drawText(screen *ebiten.Image, s string, r keypad.Rect, scale float64) {
	const glyphW, glyphH = 6, 16

	w := glyphW * len(s)
	if w == 0 {
		return
	}
	if g.text == nil || g.text.Bounds().Dx() < w {
		if g.text != nil {
			g.text.Deallocate()
		}
		g.text = ebiten.NewImage(w*2, glyphH)
	}
	g.text.Clear()
	ebitenutil.DebugPrintAt(g.text, s, 0, 0)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(r.X+r.W)-float64(w)*scale, float64(r.Y+r.H)-glyphH*scale)
	screen.DrawImage(g.text, op)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.layout.Width, g.layout.Height
}
