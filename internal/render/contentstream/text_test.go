package contentstream

import "testing"

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   string
	}{
		{
			"simple show",
			"BT (Hello world) Tj ET",
			"Hello world",
		},
		{
			"kerned array with inter-word gap",
			"BT [(Hello) -300 (world)] TJ ET",
			"Hello world",
		},
		{
			"small kerning is intra-word",
			"BT [(Hel) -50 (lo)] TJ ET",
			"Hello",
		},
		{
			"positioning operators break lines",
			"BT (line one) Tj 0 -12 Td (line two) Tj ET",
			"line one\nline two",
		},
		{
			"next-line show operator",
			"BT (first) Tj (second) ' ET",
			"firstsecond",
		},
		{
			"empty stream",
			"",
			"",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ops, err := Parse([]byte(tc.stream))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := ExtractText(ops); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCleanExtracted(t *testing.T) {
	tests := []struct{ in, want string }{
		{"a\n\n\nb", "a\nb"},
		{"  padded  ", "padded"},
		{"ctrl\x01chars\x02here", "ctrlcharshere"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tc := range tests {
		if got := cleanExtracted(tc.in); got != tc.want {
			t.Errorf("cleanExtracted(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
