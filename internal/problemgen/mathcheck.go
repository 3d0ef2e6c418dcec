package problemgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotComputable is returned when a problem text is not a plain arithmetic
// expression this package knows how to evaluate.
var ErrNotComputable = errors.New("expression not computable")

// Check independently recomputes the answer from p.Text and compares it with
// p.Answer. It also rejects negative answers, which no level may produce.
func Check(p Problem) error {
	computed, err := Evaluate(p.Text)
	if err != nil {
		return err
	}
	if computed != p.Answer {
		return fmt.Errorf("computed %d but problem claims %d", computed, p.Answer)
	}
	if computed < 0 {
		return fmt.Errorf("negative answer %d", computed)
	}
	return nil
}

// Evaluate computes the value of a problem statement such as "3 × 4 - 5 = ?".
// Operands and operators must be separated by single spaces. Multiplication
// binds tighter than addition and subtraction.
func Evaluate(text string) (int, error) {
	expr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "= ?"))
	tokens := strings.Fields(expr)
	if len(tokens) == 0 || len(tokens)%2 == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotComputable, text)
	}

	first, err := strconv.Atoi(tokens[0])
	if err != nil {
		return 0, fmt.Errorf("%w: operand %q", ErrNotComputable, tokens[0])
	}

	// Fold products into the running term, add finished terms to the total.
	total := 0
	term := first
	sign := 1
	for i := 1; i < len(tokens); i += 2 {
		n, err := strconv.Atoi(tokens[i+1])
		if err != nil {
			return 0, fmt.Errorf("%w: operand %q", ErrNotComputable, tokens[i+1])
		}
		switch normalizeOp(tokens[i]) {
		case "*":
			term *= n
		case "+":
			total += sign * term
			term, sign = n, 1
		case "-":
			total += sign * term
			term, sign = n, -1
		default:
			return 0, fmt.Errorf("%w: operator %q", ErrNotComputable, tokens[i])
		}
	}
	return total + sign*term, nil
}

// normalizeOp normalizes multiplication symbols.
func normalizeOp(op string) string {
	switch op {
	case "×", "x":
		return "*"
	case "−":
		return "-"
	default:
		return op
	}
}
