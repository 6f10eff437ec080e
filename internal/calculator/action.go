package calculator

import "fmt"

// ActionKind enumerates the inputs the engine understands.
type ActionKind int

const (
	ActionDigit ActionKind = iota + 1
	ActionDecimal
	ActionOperator
	ActionClear
	ActionDelete
	ActionPercent
	ActionEquals
)

var actionNames = map[ActionKind]string{
	ActionDigit:    "digit",
	ActionDecimal:  "decimal",
	ActionOperator: "operator",
	ActionClear:    "clear",
	ActionDelete:   "delete",
	ActionPercent:  "percent",
	ActionEquals:   "calculate",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a single keypad or keyboard input. Digit is set for ActionDigit,
// Operator for ActionOperator.
type Action struct {
	Kind     ActionKind
	Digit    rune
	Operator Operator
}

func Digit(d rune) Action { return Action{Kind: ActionDigit, Digit: d} }
func Decimal() Action { return Action{Kind: ActionDecimal} }
func OperatorAction(op Operator) Action { return Action{Kind: ActionOperator, Operator: op} }
func Clear() Action { return Action{Kind: ActionClear} }
func Delete() Action { return Action{Kind: ActionDelete} }
func Percent() Action { return Action{Kind: ActionPercent} }
func Equals() Action { return Action{Kind: ActionEquals} }

func (a Action) String() string {
	switch a.Kind {
	case ActionDigit:
		return "digit:" + string(a.Digit)
	case ActionOperator:
		return "operator:" + a.Operator.Key()
	}
	return a.Kind.String()
}

// ActionForKey maps a physical keyboard key name onto an Action. Key names
// follow the DOM KeyboardEvent.key convention ("7", "+", "Enter", "Escape",
// "Backspace"). Unrecognized keys return false.
func ActionForKey(key string) (Action, bool) {
	switch key {
	case "Enter", "=":
		return Equals(), true
	case "Escape", "c", "C":
		return Clear(), true
	case "Backspace":
		return Delete(), true
	case "%":
		return Percent(), true
	case ".":
		return Decimal(), true
	case "+", "-", "*", "/":
		op, _ := ParseOperator(key)
		return OperatorAction(op), true
	}
	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		return Digit(rune(key[0])), true
	}
	return Action{}, false
}

// ParseAction builds an Action from a keypad action name and its value, as
// carried by keypad buttons ("digit"/"7", "operator"/"*", "calculate"/"").
func ParseAction(name, value string) (Action, error) {
	switch name {
	case "digit", "number":
		if len(value) != 1 || value[0] < '0' || value[0] > '9' {
			return Action{}, fmt.Errorf("invalid digit %q", value)
		}
		return Digit(rune(value[0])), nil
	case "operator":
		op, err := ParseOperator(value)
		if err != nil {
			return Action{}, err
		}
		return OperatorAction(op), nil
	case "decimal":
		return Decimal(), nil
	case "clear":
		return Clear(), nil
	case "delete":
		return Delete(), nil
	case "percent":
		return Percent(), nil
	case "calculate", "equals":
		return Equals(), nil
	}
	return Action{}, fmt.Errorf("unknown action %q", name)
}
