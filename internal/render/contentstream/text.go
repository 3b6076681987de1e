package contentstream

import "strings"

// ExtractText pulls the raw text-showing strings out of an operator stream.
// This is a best-effort extraction (no font decoding, no CID maps): pdfTeX and
// most office exporters emit WinAnsi/ASCII text that survives it intact, which
// is all the sampling heuristics need.
func ExtractText(ops []Op) string {
	var sb strings.Builder
	for _, op := range ops {
		switch op.Operator {
		case "Tj", "'", "\"":
			for _, a := range op.Operands {
				if a.IsStr {
					sb.WriteString(a.Str)
				}
			}
		case "TJ":
			for _, a := range op.Operands {
				if !a.IsArr {
					continue
				}
				for _, el := range a.Arr {
					if el.IsStr {
						sb.WriteString(el.Str)
					} else if el.IsNum && el.Num < -150 {
						// Large negative kerning is an inter-word gap.
						sb.WriteByte(' ')
					}
				}
			}
		case "Td", "TD", "T*":
			sb.WriteByte('\n')
		case "ET":
			sb.WriteByte('\n')
		}
	}
	return cleanExtracted(sb.String())
}

// cleanExtracted collapses blank lines and strips unprintable bytes.
func cleanExtracted(s string) string {
	var sb strings.Builder
	lastNL := true
	for _, r := range s {
		if r == '\n' {
			if !lastNL {
				sb.WriteRune(r)
				lastNL = true
			}
			continue
		}
		if r < 0x20 && r != '\t' {
			continue
		}
		sb.WriteRune(r)
		lastNL = false
	}
	return strings.TrimSpace(sb.String())
}
