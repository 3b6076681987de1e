package contentstream

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("numbers and operator", func(t *testing.T) {
		ops, err := Parse([]byte("1 0 0 1 50.5 -100 cm"))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operator != "cm" {
			t.Fatalf("unexpected ops: %+v", ops)
		}
		want := []float64{1, 0, 0, 1, 50.5, -100}
		if got := ops[0].Nums(); !reflect.DeepEqual(got, want) {
			t.Errorf("nums = %v, want %v", got, want)
		}
	})

	t.Run("literal string", func(t *testing.T) {
		ops, err := Parse([]byte(`(Hello \(nested\) world) Tj`))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operator != "Tj" {
			t.Fatalf("unexpected ops: %+v", ops)
		}
		if s := ops[0].Operands[0].Str; s != "Hello (nested) world" {
			t.Errorf("string = %q", s)
		}
	})

	t.Run("balanced parens without escapes", func(t *testing.T) {
		ops, err := Parse([]byte("(a (b) c) Tj"))
		if err != nil {
			t.Fatal(err)
		}
		if s := ops[0].Operands[0].Str; s != "a (b) c" {
			t.Errorf("string = %q", s)
		}
	})

	t.Run("hex string", func(t *testing.T) {
		ops, err := Parse([]byte("<48656C6C6F> Tj"))
		if err != nil {
			t.Fatal(err)
		}
		if s := ops[0].Operands[0].Str; s != "Hello" {
			t.Errorf("hex string = %q", s)
		}
	})

	t.Run("array operand", func(t *testing.T) {
		ops, err := Parse([]byte("[(He) -250 (llo)] TJ"))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operator != "TJ" {
			t.Fatalf("unexpected ops: %+v", ops)
		}
		arr := ops[0].Operands[0]
		if !arr.IsArr || len(arr.Arr) != 3 {
			t.Fatalf("array = %+v", arr)
		}
		if arr.Arr[0].Str != "He" || arr.Arr[1].Num != -250 || arr.Arr[2].Str != "llo" {
			t.Errorf("array elements = %+v", arr.Arr)
		}
	})

	t.Run("names consumed silently", func(t *testing.T) {
		ops, err := Parse([]byte("/F1 12 Tf"))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operator != "Tf" {
			t.Fatalf("unexpected ops: %+v", ops)
		}
		if got := ops[0].Nums(); len(got) != 1 || got[0] != 12 {
			t.Errorf("nums = %v", got)
		}
	})

	t.Run("comments skipped", func(t *testing.T) {
		ops, err := Parse([]byte("% a comment\n10 20 m"))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 1 || ops[0].Operator != "m" {
			t.Fatalf("unexpected ops: %+v", ops)
		}
	})

	t.Run("dictionaries skipped", func(t *testing.T) {
		ops, err := Parse([]byte("<< /Type /Page /Nested << /A 1 >> >> 10 20 m S"))
		if err != nil {
			t.Fatal(err)
		}
		var operators []string
		for _, op := range ops {
			operators = append(operators, op.Operator)
		}
		if !reflect.DeepEqual(operators, []string{"m", "S"}) {
			t.Errorf("operators = %v", operators)
		}
	})

	t.Run("inline image payload skipped", func(t *testing.T) {
		// The payload bytes spell out path operators; none may surface as ops.
		stream := "BI /W 2 /H 2 /BPC 8 ID 10 20 m 30 40 l S \xff\xfe EI"
		ops, err := Parse([]byte(stream))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 0 {
			t.Fatalf("payload tokenized as operators: %+v", ops)
		}
		if paths := ExtractPaths(ops, 792); len(paths) != 0 {
			t.Errorf("phantom paths from image payload: %+v", paths)
		}
	})

	t.Run("lexing resumes after inline image", func(t *testing.T) {
		stream := "BI /W 1 ID \x01EI S EI 100 100 m 200 200 l S"
		ops, err := Parse([]byte(stream))
		if err != nil {
			t.Fatal(err)
		}
		var operators []string
		for _, op := range ops {
			operators = append(operators, op.Operator)
		}
		if !reflect.DeepEqual(operators, []string{"m", "l", "S"}) {
			t.Errorf("operators = %v", operators)
		}
	})

	t.Run("unterminated inline image", func(t *testing.T) {
		ops, err := Parse([]byte("10 20 m 30 40 l S BI /W 1 ID \x01\x02\x03"))
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 3 {
			t.Errorf("ops before the image lost: %+v", ops)
		}
	})

	t.Run("empty stream", func(t *testing.T) {
		ops, err := Parse(nil)
		if err != nil {
			t.Fatal(err)
		}
		if len(ops) != 0 {
			t.Errorf("ops = %+v", ops)
		}
	})
}
