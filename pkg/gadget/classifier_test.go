package gadget

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		line string
		want Category
	}{
		{"pop", "0x1000: pop eax ; ret", Memory},
		{"add", "0x1004: add eax, ebx ; ret", Arithmetic},
		{"xor", "0x1008: xor eax, eax ; ret", Logic},
		{"jmp", "0x100c: jmp eax", ControlFlow},
		{"nop", "0x1010: nop", Other},
		{"empty", "", Other},
		{"whitespace", "   \t", Other},
		{"memory beats arithmetic", "mov eax, add ebx", Memory},
		{"arithmetic beats logic", "0x1: sub eax, 1 ; xor ebx, ebx ; ret", Arithmetic},
		{"logic beats control flow", "0x1: and eax, ebx ; call ecx", Logic},
		{"call", "0x0000000000401a2b : call qword ptr [rax]", Logic}, // "qword" contains "or"
		{"plain call", "0x1: call eax", ControlFlow},
		{"lcall", "0x1: lcall [eax]", ControlFlow},
		{"je", "0x1: je 0x40 ; ret", ControlFlow},
		{"jne is not je", "0x1: jne 0x40 ; ret", Other},
		{"roll", "0x1: roll $1, eax ; ret", Logic},
		{"case sensitive", "0x1: POP EAX ; RET", Other},
		{"or inside operand", "0x1: inc dword ptr [eax] ; ret", Logic},
		{"movzx is memory", "0x1: movzx eax, al ; ret", Memory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.line); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifier_MnemonicMode(t *testing.T) {
	c := NewClassifier(WithMatchMode(MatchMnemonic))

	tests := []struct {
		line string
		want Category
	}{
		{"0x1000: pop eax ; ret", Memory},
		{"0x1: inc dword ptr [eax] ; ret", Other},
		{"0x1: movzx eax, al ; ret", Other},
		{"0x1: lea eax, [ebx] ; xor eax, eax ; ret", Logic},
		{"0x0000000000401a2b : call qword ptr [rax]", ControlFlow},
		{"add eax, ebx ; pop ecx ; ret", Memory},
		{"", Other},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := c.Classify(tt.line); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClassifier_CustomRules(t *testing.T) {
	c := NewClassifier(WithRules([]Rule{
		{Category: ControlFlow, Keywords: []string{"ret"}},
		{Category: Memory, Keywords: []string{"pop"}},
	}))

	if got := c.Classify("pop eax ; ret"); got != ControlFlow {
		t.Errorf("Classify() = %v, want %v (rule order)", got, ControlFlow)
	}
	if got := c.Classify("pop eax"); got != Memory {
		t.Errorf("Classify() = %v, want %v", got, Memory)
	}
}

func TestClassifier_ClassifyReader(t *testing.T) {
	input := strings.Join([]string{
		"0x1000: pop eax ; ret",
		"0x1004: add eax, ebx ; ret",
		"0x1008: xor eax, eax ; ret",
		"0x100c: jmp eax",
		"0x1010: nop",
	}, "\n") + "\n"

	var labeled []string
	counts, err := NewClassifier().ClassifyReader(context.Background(), strings.NewReader(input), func(cat Category, line string) {
		labeled = append(labeled, cat.String())
	})
	if err != nil {
		t.Fatalf("ClassifyReader failed: %v", err)
	}

	want := Counts{Total: 5, Memory: 1, Arithmetic: 1, Logic: 1, ControlFlow: 1, Other: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"memory", "arithmetic", "logic", "control_flow", "other"}, labeled); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifier_ClassifyReader_BlankLines(t *testing.T) {
	counts, err := NewClassifier().ClassifyReader(context.Background(), strings.NewReader("pop eax\n\n\nret"), nil)
	if err != nil {
		t.Fatalf("ClassifyReader failed: %v", err)
	}

	want := Counts{Total: 4, Memory: 1, Other: 3}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifier_ClassifyReader_LongLines(t *testing.T) {
	long := "0x1000 : " + strings.Repeat("nop ; ", 400*1024) + "ret"
	input := "pop eax ; ret\r\n" + long + "\nxor eax, eax ; ret"

	var lines []string
	counts, err := NewClassifier().ClassifyReader(context.Background(), strings.NewReader(input), func(cat Category, line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("ClassifyReader failed: %v", err)
	}

	want := Counts{Total: 3, Memory: 1, Logic: 1, Other: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if len(lines) != 3 || lines[0] != "pop eax ; ret" || lines[1] != long || lines[2] != "xor eax, eax ; ret" {
		t.Errorf("lines not split on newlines: got %d lines", len(lines))
	}
}

func TestClassifier_ClassifyReader_ReadError(t *testing.T) {
	r := io.MultiReader(strings.NewReader("pop eax\n"), iotest.ErrReader(io.ErrUnexpectedEOF))
	_, err := NewClassifier().ClassifyReader(context.Background(), r, nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ClassifyReader error = %v, want the reader's error", err)
	}
}

func TestClassifier_ClassifyReader_Empty(t *testing.T) {
	counts, err := NewClassifier().ClassifyReader(context.Background(), strings.NewReader(""), nil)
	if err != nil {
		t.Fatalf("ClassifyReader failed: %v", err)
	}
	if counts != (Counts{}) {
		t.Errorf("counts = %+v, want all zero", counts)
	}
}

func TestClassifier_ClassifyReader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClassifier().ClassifyReader(ctx, strings.NewReader("pop eax\n"), nil)
	if err == nil {
		t.Fatal("expected context error")
	}
}

// Every line lands in exactly one category and Total tracks the line count.
func TestClassifier_Totality(t *testing.T) {
	lines := []string{
		"", "ret", "pop", "mov", "add", "sub", "mul", "div", "xor", "ror", "roll",
		"and", "or", "not", "lcall", "call", "jmp", "je", "int 0x80", "syscall",
		"0x08048000 : leave ; ret", "\x00\xff", strings.Repeat("a", 5000),
	}

	for _, mode := range []MatchMode{MatchSubstring, MatchMnemonic} {
		c := NewClassifier(WithMatchMode(mode))
		counts := c.ClassifyLines(lines)
		if counts.Total != len(lines) {
			t.Errorf("%s: Total = %d, want %d", mode, counts.Total, len(lines))
		}
		if !counts.Consistent() {
			t.Errorf("%s: counts not consistent: %+v", mode, counts)
		}
	}
}

func TestMnemonics(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"0x0000000000401a2b : pop rdi ; ret", []string{"pop", "ret"}},
		{"0x1000: pop eax ; ret", []string{"pop", "ret"}},
		{"pop eax ; ret", []string{"pop", "ret"}},
		{"mov dword ptr [eax], ecx ; ret", []string{"mov", "ret"}},
		{"Unique gadgets found: 12", []string{"Unique"}},
		{"", nil},
		{" ; ; ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Mnemonics(tt.line)); diff != "" {
				t.Errorf("Mnemonics(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchMode
		wantErr bool
	}{
		{"", MatchSubstring, false},
		{"substring", MatchSubstring, false},
		{"mnemonic", MatchMnemonic, false},
		{"token", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMatchMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMatchMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMatchMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	var c Counts
	for _, cat := range Categories {
		c.Add(cat)
	}
	c.Add(Category(42)) // unknown categories count as Other

	want := Counts{Total: 6, Memory: 1, Arithmetic: 1, Logic: 1, ControlFlow: 1, Other: 2}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
	if c.Get(Other) != 2 || c.Get(Logic) != 1 {
		t.Errorf("Get returned wrong values: %+v", c)
	}

	c.Merge(Counts{Total: 3, Memory: 2, Logic: 1})
	if c.Total != 9 || c.Memory != 3 || c.Logic != 2 {
		t.Errorf("Merge: got %+v", c)
	}
	if !c.Consistent() {
		t.Errorf("Merge of consistent counts should stay consistent: %+v", c)
	}
}

func TestParseCategory(t *testing.T) {
	for _, cat := range Categories {
		got, err := ParseCategory(cat.String())
		if err != nil || got != cat {
			t.Errorf("ParseCategory(%q) = %v, %v", cat.String(), got, err)
		}
	}
	if _, err := ParseCategory("bogus"); err == nil {
		t.Error("ParseCategory(bogus) should fail")
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSummary(&buf, "ls.gdt", Counts{Total: 5, Memory: 1, Arithmetic: 1, Logic: 1, ControlFlow: 1, Other: 1})
	if err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	want := `Categorized gadget count for "ls.gdt".
Total gadgets        :    5
Memory gadgets       :    1
Arithmetic gadgets   :    1
Logic gadgets        :    1
Control flow gadgets :    1
Other gadgets        :    1
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteSummary_RawName(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, "b\"in\u00e9.gdt", Counts{}); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if want := "Categorized gadget count for \"b\"in\u00e9.gdt\"."; header != want {
		t.Errorf("header = %q, want %q", header, want)
	}
}

func TestWriteSummary_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, "", Counts{}); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("got %d lines, want 6:\n%s", len(lines), buf.String())
	}
	for i, f := range SummaryFields {
		if !strings.HasPrefix(lines[i], f.Label) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], f.Label)
		}
	}
}
