package protorender

import (
	"strings"
	"unicode"

	"google.golang.org/protobuf/types/descriptorpb"
)

// NormalizeName returns s unchanged if it is all-lowercase or snake-case in
// a single letter case (e.g. "max_hp", "MAX_HP"). Any other name is
// converted to lower snake-case, keeping acronyms together:
//
//	PlayerID   -> player_id
//	HTTPServer -> http_server
//	Player_Id  -> player_id
func NormalizeName(s string) string {
	hasUpper := strings.IndexFunc(s, unicode.IsUpper) >= 0
	if !hasUpper {
		return s
	}
	hasLower := strings.IndexFunc(s, unicode.IsLower) >= 0
	if strings.IndexByte(s, '_') >= 0 && !hasLower {
		return s
	}
	return snakeCase(s)
}

func snakeCase(s string) string {
	rs := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range rs {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}

		if i > 0 && rs[i-1] != '_' {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// fieldNames returns the rendered name of each field. A field keeps its
// declared name when its normalised name would clash with the declared or
// normalised name of a sibling.
func fieldNames(fields []*descriptorpb.FieldDescriptorProto) map[*descriptorpb.FieldDescriptorProto]string {
	claims := make(map[string]int, 2*len(fields))
	for _, f := range fields {
		src, norm := f.GetName(), NormalizeName(f.GetName())
		claims[src]++
		if norm != src {
			claims[norm]++
		}
	}

	names := make(map[*descriptorpb.FieldDescriptorProto]string, len(fields))
	for _, f := range fields {
		src, norm := f.GetName(), NormalizeName(f.GetName())
		if norm != src && claims[norm] > 1 {
			norm = src
		}
		names[f] = norm
	}
	return names
}

// jsonName derives the default JSON name protoc assigns to a field.
func jsonName(s string) string {
	b := make([]byte, 0, len(s))
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		b = append(b, c)
		upper = false
	}
	return string(b)
}
