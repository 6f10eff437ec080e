package calculator

import "fmt"

// Operator is one of the four binary operators on the keypad.
type Operator int

const (
	Add Operator = iota + 1
	Subtract
	Multiply
	Divide
)

// ParseOperator maps a keypad value ("+", "-", "*", "/") to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "+":
		return Add, nil
	case "-":
		return Subtract, nil
	case "*":
		return Multiply, nil
	case "/":
		return Divide, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Key returns the keypad value of the operator.
func (op Operator) Key() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	}
	return ""
}

// Symbol returns the glyph shown in the expression trail. Display only.
func (op Operator) Symbol() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "−"
	case Multiply:
		return "×"
	case Divide:
		return "÷"
	}
	return op.Key()
}

func (op Operator) String() string {
	switch op {
	case Add:
		return "add"
	case Subtract:
		return "subtract"
	case Multiply:
		return "multiply"
	case Divide:
		return "divide"
	}
	return fmt.Sprintf("Operator(%d)", int(op))
}

// apply returns a op b. ok is false only for division by exactly zero.
func (op Operator) apply(a, b float64) (result float64, ok bool) {
	switch op {
	case Add:
		return a + b, true
	case Subtract:
		return a - b, true
	case Multiply:
		return a * b, true
	case Divide:
		if b == 0 {
			return 0, false
		}
		return a / b, true
	}
	return 0, false
}
