package calculator

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrorText is the operand shown after a division by zero.
const ErrorText = "Error"

// compactThreshold is the formatted length above which the display should
// switch to the smaller font.
const compactThreshold = 12

var printer = message.NewPrinter(language.AmericanEnglish)

// parseOperand converts an operand string to a float. Anything that does not
// parse (the Error sentinel) becomes NaN. Out-of-range magnitudes become ±Inf.
func parseOperand(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

// FormatNumber renders v in the shortest form that parses back to the same
// float. Magnitudes of 1e21 and above, or below 1e-6, use exponent form
// ("1e+21", "1.5e-7").
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	abs := math.Abs(v)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(v, 'e', -1, 64)
		mantissa, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		exp = strings.TrimLeft(exp[1:], "0")
		return mantissa + "e" + sign + exp
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatDisplay groups the integer part of a raw operand with thousands
// separators and keeps the fractional part as typed: "12345.6" becomes
// "12,345.6" and "12345." becomes "12,345.". Non-numeric input is returned
// unchanged. The result is for display only and must not be parsed back.
func FormatDisplay(raw string) string {
	if math.IsNaN(parseOperand(raw)) {
		return raw
	}

	intPart, frac, hasPoint := strings.Cut(raw, ".")

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	grouped := groupInteger(intPart)
	if !hasPoint {
		return sign + grouped
	}
	return sign + grouped + "." + frac
}

// groupInteger inserts separators into a run of digits. Typed operands can
// exceed float64 precision, so plain digits are grouped as text; exponent
// forms go through the locale printer.
func groupInteger(s string) string {
	if strings.Trim(s, "0123456789") != "" {
		return groupDigits(parseOperand(s))
	}

	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Readout is what a display sink shows after every state change.
type Readout struct {
	Operand    string `json:"operand"`
	Expression string `json:"expression"`
	Compact    bool   `json:"compact"`
}

func newReadout(operand, expression string) Readout {
	shown := operand
	if operand != ErrorText {
		shown = FormatDisplay(operand)
	}
	return Readout{
		Operand:    shown,
		Expression: expression,
		Compact:    utf8.RuneCountInString(shown) > compactThreshold,
	}
}
