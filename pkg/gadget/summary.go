package gadget

import (
	"fmt"
	"io"
)

// Summary labels. These strings are the interchange format between the
// classifier and the aggregator and must not change.
const (
	LabelTotal       = "Total gadgets"
	LabelMemory      = "Memory gadgets"
	LabelArithmetic  = "Arithmetic gadgets"
	LabelLogic       = "Logic gadgets"
	LabelControlFlow = "Control flow gadgets"
	LabelOther       = "Other gadgets"
)

// SummaryField ties a summary label to its counter.
type SummaryField struct {
	Label string
	Ref   func(c *Counts) *int
}

// SummaryFields lists the six summary lines in output order.
var SummaryFields = []SummaryField{
	{LabelTotal, func(c *Counts) *int { return &c.Total }},
	{LabelMemory, func(c *Counts) *int { return &c.Memory }},
	{LabelArithmetic, func(c *Counts) *int { return &c.Arithmetic }},
	{LabelLogic, func(c *Counts) *int { return &c.Logic }},
	{LabelControlFlow, func(c *Counts) *int { return &c.ControlFlow }},
	{LabelOther, func(c *Counts) *int { return &c.Other }},
}

// labelWidth pads labels so the colons line up.
const labelWidth = 21

// WriteSummary writes the six-line category summary for c. When name is not
// empty a header line naming the source file comes first.
//
//	Categorized gadget count for "ls.gdt".
//	Total gadgets        :  120
//	Memory gadgets       :   64
//	...
func WriteSummary(w io.Writer, name string, c Counts) error {
	if name != "" {
		if _, err := fmt.Fprintf(w, "Categorized gadget count for \"%s\".\n", name); err != nil {
			return err
		}
	}
	for _, f := range SummaryFields {
		if _, err := fmt.Fprintf(w, "%-*s: %4d\n", labelWidth, f.Label, *f.Ref(&c)); err != nil {
			return err
		}
	}
	return nil
}
