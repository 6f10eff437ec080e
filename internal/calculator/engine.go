package calculator

import (
	"fmt"
	"math"
	"strings"
)

// Recorder receives completed calculations. history.Ledger implements it.
type Recorder interface {
	Append(expression, result string) error
}

// Display receives the readout after every state change.
type Display interface {
	Show(Readout)
}

// DisplayFunc adapts a plain function to Display.
type DisplayFunc func(Readout)

func (f DisplayFunc) Show(r Readout) { f(r) }

// Outcome describes what a single Dispatch did, for callers that log or
// meter it.
type Outcome struct {
	// Calculated is set when a pending operation was resolved, including
	// implicit chained steps.
	Calculated bool
	// Recorded is set when the calculation was appended to the recorder.
	Recorded bool
	// DivisionByZero is set when the engine entered the error state.
	DivisionByZero bool
	// Result is the raw operand after a calculation.
	Result string
}

// Engine is the calculator state machine. It is not safe for concurrent use;
// every action runs to completion before the next one.
type Engine struct {
	current  string
	previous string
	operator Operator // zero when no operation is pending
	trail    string
	fresh    bool

	recorder Recorder
	display  Display
	outcome  Outcome
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sends completed calculations to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithDisplay notifies d after every state change.
func WithDisplay(d Display) Option {
	return func(e *Engine) { e.display = d }
}

// NewEngine returns an engine in the cleared state.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{current: "0"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Operand returns the raw current operand.
func (e *Engine) Operand() string { return e.current }

// Expression returns the expression trail shown above the operand.
func (e *Engine) Expression() string { return e.trail }

// Pending returns the pending operator and its left operand, if any.
func (e *Engine) Pending() (Operator, string, bool) {
	if e.operator == 0 {
		return 0, "", false
	}
	return e.operator, e.previous, true
}

// AwaitingFreshInput reports whether the next digit starts a new operand.
func (e *Engine) AwaitingFreshInput() bool { return e.fresh }

// Readout returns the formatted view of the current state.
func (e *Engine) Readout() Readout {
	return newReadout(e.current, e.trail)
}

// Dispatch applies a single action. The returned error is only ever a
// recorder failure; the state transition has already happened by then.
func (e *Engine) Dispatch(a Action) (Outcome, error) {
	e.outcome = Outcome{}

	var err error
	switch a.Kind {
	case ActionDigit:
		e.InputDigit(a.Digit)
	case ActionDecimal:
		e.InputDecimalPoint()
	case ActionOperator:
		err = e.InputOperator(a.Operator)
	case ActionClear:
		e.ClearAll()
	case ActionDelete:
		e.DeleteLastChar()
	case ActionPercent:
		e.Percent()
	case ActionEquals:
		err = e.Calculate(true)
	default:
		return Outcome{}, fmt.Errorf("unsupported action %v", a)
	}
	return e.outcome, err
}

// InputDigit appends d to the operand, or starts a new operand after an
// operator or a result. A lone "0" is replaced rather than prefixed.
func (e *Engine) InputDigit(d rune) {
	if d < '0' || d > '9' {
		return
	}
	switch {
	case e.fresh:
		e.current = string(d)
		e.fresh = false
	case e.current == "0":
		e.current = string(d)
	default:
		e.current += string(d)
	}
	e.notify()
}

// InputDecimalPoint adds a decimal point unless the operand already has one.
func (e *Engine) InputDecimalPoint() {
	if e.fresh {
		e.current = "0."
		e.fresh = false
	} else if !strings.Contains(e.current, ".") {
		e.current += "."
	}
	e.notify()
}

// InputOperator sets op as the pending operator. If another operator is
// pending and an operand has been typed since, that operation is resolved
// first without recording it.
func (e *Engine) InputOperator(op Operator) error {
	var err error
	if e.operator != 0 && !e.fresh {
		err = e.Calculate(false)
	}

	e.previous = e.current
	e.operator = op
	e.trail = FormatDisplay(e.previous) + " " + op.Symbol()
	e.fresh = true
	e.notify()
	return err
}

// Calculate resolves the pending operation. Division by zero moves the
// display to the error state and leaves the pending operation in place.
// When record is set the calculation is appended to the recorder.
func (e *Engine) Calculate(record bool) error {
	if e.operator == 0 {
		return nil
	}

	prev := parseOperand(e.previous)
	cur := parseOperand(e.current)

	result, ok := e.operator.apply(prev, cur)
	if !ok {
		e.outcome.DivisionByZero = true
		e.EnterErrorState()
		return nil
	}

	expression := e.trail + " " + FormatDisplay(e.current)
	result = math.Round(result*1e9) / 1e9

	e.trail = ""
	e.previous = ""
	e.operator = 0
	e.fresh = true
	e.outcome.Calculated = true

	if math.IsNaN(result) || math.IsInf(result, 0) {
		e.EnterErrorState()
		return nil
	}

	e.current = FormatNumber(result)
	e.outcome.Result = e.current

	var err error
	if record && e.recorder != nil {
		if err = e.recorder.Append(expression, e.current); err != nil {
			err = fmt.Errorf("record calculation: %w", err)
		} else {
			e.outcome.Recorded = true
		}
	}

	e.notify()
	return err
}

// ClearAll returns the engine to its initial state.
func (e *Engine) ClearAll() {
	e.current = "0"
	e.previous = ""
	e.operator = 0
	e.trail = ""
	e.fresh = false
	e.notify()
}

// DeleteLastChar removes the last typed character. A single digit, or a
// negative single digit, becomes "0".
func (e *Engine) DeleteLastChar() {
	if e.current == ErrorText ||
		len(e.current) == 1 ||
		(len(e.current) == 2 && e.current[0] == '-') {
		e.current = "0"
	} else {
		// A dangling exponent marker ("1e-") is dropped with the digit.
		e.current = strings.TrimRight(e.current[:len(e.current)-1], "e+-")
		if math.IsNaN(parseOperand(e.current)) {
			e.current = "0"
		}
	}
	e.notify()
}

// Percent divides the operand by 100. A non-finite result enters the error
// state.
func (e *Engine) Percent() {
	if e.current == ErrorText {
		return
	}
	v := parseOperand(e.current) / 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		e.EnterErrorState()
		return
	}
	e.current = FormatNumber(v)
	e.notify()
}

// EnterErrorState shows the error sentinel. The next digit replaces it.
func (e *Engine) EnterErrorState() {
	e.current = ErrorText
	e.fresh = true
	e.notify()
}

// LoadOperand replaces the current operand with a previously computed
// result, as when a history row is selected. Values that do not parse are
// ignored.
func (e *Engine) LoadOperand(value string) bool {
	v := parseOperand(value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	e.current = value
	e.notify()
	return true
}

func (e *Engine) notify() {
	if e.display != nil {
		e.display.Show(e.Readout())
	}
}
