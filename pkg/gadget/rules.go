package gadget

import (
	"fmt"
	"strings"
)

// Rule maps a set of instruction keywords to a category.
type Rule struct {
	Category Category
	Keywords []string
}

// DefaultRules is the category table from "Return-Oriented Programming:
// Systems, Languages, and Applications". Order matters: the first rule with
// a matching keyword wins.
var DefaultRules = []Rule{
	{Category: Memory, Keywords: []string{"pop", "mov"}},
	{Category: Arithmetic, Keywords: []string{"add", "sub", "mul", "div"}},
	{Category: Logic, Keywords: []string{"xor", "ror", "roll", "and", "or", "not"}},
	{Category: ControlFlow, Keywords: []string{"lcall", "call", "jmp", "je"}},
}

// MatchMode selects how keywords are compared against a gadget line.
type MatchMode string

const (
	// MatchSubstring matches a keyword anywhere in the line, case-sensitive.
	// "or" therefore matches "xor" and operand text such as "word ptr".
	// This is the historical behavior and the default.
	MatchSubstring MatchMode = "substring"

	// MatchMnemonic compares keywords against whole instruction mnemonics.
	// It changes classification results relative to MatchSubstring.
	MatchMnemonic MatchMode = "mnemonic"
)

// ParseMatchMode validates a match mode string. Empty selects MatchSubstring.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(s) {
	case "", MatchSubstring:
		return MatchSubstring, nil
	case MatchMnemonic:
		return MatchMnemonic, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (want %q or %q)", s, MatchSubstring, MatchMnemonic)
	}
}

// matches reports whether any keyword of r matches the line.
// mnemonics is only consulted in MatchMnemonic mode.
func (r Rule) matches(line string, mnemonics []string, mode MatchMode) bool {
	for _, kw := range r.Keywords {
		if mode == MatchMnemonic {
			for _, m := range mnemonics {
				if m == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// Mnemonics extracts the instruction mnemonics of a gadget line.
// A leading "0x...:" address is dropped, instructions are split on ';' and
// the first whitespace-delimited token of each instruction is its mnemonic.
func Mnemonics(line string) []string {
	body := strings.TrimSpace(line)
	if i := strings.IndexByte(body, ':'); i >= 0 && strings.HasPrefix(strings.TrimSpace(body[:i]), "0x") {
		body = body[i+1:]
	}

	var out []string
	for insn := range strings.SplitSeq(body, ";") {
		fields := strings.Fields(insn)
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields[0])
	}
	return out
}
