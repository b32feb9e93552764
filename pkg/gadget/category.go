// Package gadget classifies ROP gadget lines into instruction categories.
//
// A gadget line is whatever the gadget finder printed for one gadget,
// typically an address followed by semicolon-separated instructions:
//
//	0x0000000000401a2b : pop rdi ; ret
//
// Classification is a first-match-wins walk over an ordered rule table.
// Counts are plain values: callers create them, classification fills them,
// and the summary writer turns them into the six-line text format that the
// aggregate package reads back.
package gadget

import "fmt"

// Category is the instruction category of a gadget.
type Category uint8

const (
	Memory Category = iota
	Arithmetic
	Logic
	ControlFlow
	Other
)

// Categories lists every category in rule order, Other last.
var Categories = []Category{Memory, Arithmetic, Logic, ControlFlow, Other}

// String returns the short lowercase name used in labeled output and metrics.
func (c Category) String() string {
	switch c {
	case Memory:
		return "memory"
	case Arithmetic:
		return "arithmetic"
	case Logic:
		return "logic"
	case ControlFlow:
		return "control_flow"
	case Other:
		return "other"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// ParseCategory is the inverse of String.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return Other, fmt.Errorf("unknown gadget category: %q", s)
}

// Counts holds per-category gadget counts.
//
// Counts produced by a Classifier always satisfy Total == Sum(). Counts read
// back from summary files are taken as written.
type Counts struct {
	Total       int `json:"total"`
	Memory      int `json:"memory"`
	Arithmetic  int `json:"arithmetic"`
	Logic       int `json:"logic"`
	ControlFlow int `json:"control_flow"`
	Other       int `json:"other"`
}

// Add records one classified gadget.
func (c *Counts) Add(cat Category) {
	c.Total++
	switch cat {
	case Memory:
		c.Memory++
	case Arithmetic:
		c.Arithmetic++
	case Logic:
		c.Logic++
	case ControlFlow:
		c.ControlFlow++
	default:
		c.Other++
	}
}

// Get returns the count for a single category.
func (c Counts) Get(cat Category) int {
	switch cat {
	case Memory:
		return c.Memory
	case Arithmetic:
		return c.Arithmetic
	case Logic:
		return c.Logic
	case ControlFlow:
		return c.ControlFlow
	default:
		return c.Other
	}
}

// Merge adds o into c field by field.
func (c *Counts) Merge(o Counts) {
	c.Total += o.Total
	c.Memory += o.Memory
	c.Arithmetic += o.Arithmetic
	c.Logic += o.Logic
	c.ControlFlow += o.ControlFlow
	c.Other += o.Other
}

// Sum returns the sum of the five category counters.
func (c Counts) Sum() int {
	return c.Memory + c.Arithmetic + c.Logic + c.ControlFlow + c.Other
}

// Consistent reports whether Total equals the sum of the categories.
func (c Counts) Consistent() bool {
	return c.Total == c.Sum()
}
