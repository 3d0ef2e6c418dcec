package problemgen

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Generator produces arithmetic problems from the level table.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator drawing from rng. A nil rng seeds a fresh PCG source.
func New(rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rng: rng}
}

// NewSeeded creates a Generator with a deterministic source, for tests and replays.
func NewSeeded(seed uint64) *Generator {
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Generate returns a problem for level. Unknown levels are served as level 1.
//
// Every problem is recomputed from its text before it is returned. A mismatch
// means the level table or a builder is broken, so Generate panics instead of
// handing out a problem with a wrong answer.
func (g *Generator) Generate(level int) Problem {
	cfg, level := Config(level)

	g.mu.Lock()
	p := g.build(cfg)
	g.mu.Unlock()

	p.Level = level
	p.Kind = cfg.Kind
	if err := Check(p); err != nil {
		panic(fmt.Sprintf("problemgen: level %d produced inconsistent problem %q (answer %d): %v",
			level, p.Text, p.Answer, err))
	}
	return p
}

func (g *Generator) build(cfg LevelConfig) Problem {
	switch cfg.Kind {
	case KindAddition:
		return g.addition(cfg.Min, cfg.Max, cfg.Terms)
	case KindSubtraction:
		return g.subtraction(cfg.Min, cfg.Max)
	case KindMultiplication:
		return g.multiplication(cfg.Min, cfg.Max)
	case KindMixed:
		if g.rng.IntN(2) == 0 {
			return g.addition(cfg.Min, cfg.Max, 2)
		}
		return g.subtraction(cfg.Min, cfg.Max)
	case KindMixedAdvanced:
		return g.mixedAdvanced(cfg.Min, cfg.Max, cfg.Terms)
	case KindChallenge:
		return g.challenge(cfg.Min, cfg.Max, cfg.Terms)
	default:
		return g.addition(cfg.Min, cfg.Max, cfg.Terms)
	}
}

// between returns a uniform integer in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) addition(lo, hi, terms int) Problem {
	nums := make([]int, terms)
	sum := 0
	for i := range nums {
		nums[i] = g.between(lo, hi)
		sum += nums[i]
	}
	return Problem{Text: joinTerms(nums, "+"), Answer: sum}
}

// subtraction samples the subtrahend no larger than the minuend.
func (g *Generator) subtraction(lo, hi int) Problem {
	a := g.between(lo, hi)
	b := g.between(lo, a)
	return twoTermSubtraction(a, b)
}

func (g *Generator) multiplication(lo, hi int) Problem {
	a := g.between(lo, hi)
	b := g.between(2, 9)
	return Problem{Text: fmt.Sprintf("%d × %d = ?", a, b), Answer: a * b}
}

func (g *Generator) mixedAdvanced(lo, hi, terms int) Problem {
	nums := make([]int, terms)
	for i := range nums {
		nums[i] = g.between(lo, hi)
	}

	var b strings.Builder
	b.WriteString(strconv.Itoa(nums[0]))
	answer := nums[0]
	for _, n := range nums[1:] {
		if g.rng.IntN(2) == 0 {
			b.WriteString(" + ")
			answer += n
		} else {
			b.WriteString(" - ")
			answer -= n
		}
		b.WriteString(strconv.Itoa(n))
	}

	if answer < 0 {
		slices.Sort(nums)
		return twoTermSubtraction(nums[len(nums)-1], nums[len(nums)-2])
	}
	return Problem{Text: b.String() + " = ?", Answer: answer}
}

func (g *Generator) challenge(lo, hi, terms int) Problem {
	switch g.rng.IntN(3) {
	case 0:
		return g.addition(lo, hi, terms)

	case 1:
		// A large number minus several small ones.
		big := g.between(hi-20, hi)
		var b strings.Builder
		b.WriteString(strconv.Itoa(big))
		answer := big
		for i := 0; i < terms-1; i++ {
			n := g.between(5, 15)
			fmt.Fprintf(&b, " - %d", n)
			answer -= n
		}
		if answer < 0 {
			return g.addition(lo, hi, terms)
		}
		return Problem{Text: b.String() + " = ?", Answer: answer}

	default:
		a := g.between(2, 10)
		m := g.between(2, 9)
		c := g.between(5, 20)
		if g.rng.IntN(2) == 0 {
			return Problem{Text: fmt.Sprintf("%d × %d + %d = ?", a, m, c), Answer: a*m + c}
		}
		if a*m < c {
			return twoTermSubtraction(c, a*m)
		}
		return Problem{Text: fmt.Sprintf("%d × %d - %d = ?", a, m, c), Answer: a*m - c}
	}
}

// twoTermSubtraction renders a - b with a >= b.
func twoTermSubtraction(a, b int) Problem {
	if a < b {
		a, b = b, a
	}
	return Problem{Text: fmt.Sprintf("%d - %d = ?", a, b), Answer: a - b}
}

func joinTerms(nums []int, op string) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " "+op+" ") + " = ?"
}
