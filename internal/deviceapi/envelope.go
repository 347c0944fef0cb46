package deviceapi

import (
	"bytes"
	"fmt"
)

// CleanReply extracts the object from a CGI reply and requotes its single
// quoted strings as JSON strings.
//
// Replies look like
//
//	 ({'CH1Output':'1','Input1Table':'Camera'})
//
// with a couple of marker characters before the object and one after it.
// The object is located by brace depth, ignoring braces inside quoted
// values, so the exact envelope width doesn't matter. A double quote inside
// a single quoted label is escaped, and \' is unescaped.
func CleanReply(data []byte) ([]byte, error) {
	start := bytes.IndexByte(data, '{')
	if start == -1 {
		return nil, fmt.Errorf("no object found in reply")
	}

	depth := 0
	var quote byte
	escaped := false

	for i := start; i < len(data); i++ {
		b := data[i]

		if escaped {
			escaped = false
			continue
		}
		if b == '\\' {
			escaped = true
			continue
		}

		if quote != 0 {
			if b == quote {
				quote = 0
			}
			continue
		}

		switch b {
		case '\'', '"':
			quote = b
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return requote(data[start : i+1]), nil
			}
		}
	}

	return nil, fmt.Errorf("unclosed object in reply")
}

// requote rewrites single quoted strings in obj as double quoted ones.
// Double quoted strings pass through untouched.
func requote(obj []byte) []byte {
	out := make([]byte, 0, len(obj)+8)
	var quote byte

	for i := 0; i < len(obj); i++ {
		b := obj[i]

		switch quote {
		case 0:
			switch b {
			case '\'':
				quote = b
				out = append(out, '"')
			case '"':
				quote = b
				out = append(out, b)
			default:
				out = append(out, b)
			}

		case '"':
			out = append(out, b)
			if b == '\\' && i+1 < len(obj) {
				i++
				out = append(out, obj[i])
			} else if b == '"' {
				quote = 0
			}

		case '\'':
			switch {
			case b == '\\' && i+1 < len(obj) && obj[i+1] == '\'':
				i++
				out = append(out, '\'')
			case b == '\\' && i+1 < len(obj):
				i++
				out = append(out, b, obj[i])
			case b == '"':
				out = append(out, '\\', '"')
			case b == '\'':
				quote = 0
				out = append(out, '"')
			default:
				out = append(out, b)
			}
		}
	}
	return out
}
