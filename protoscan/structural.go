package protoscan

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// structural walks data as a sequence of top-level protobuf records and
// tries each length-delimited payload as a descriptor set. Any malformed
// tag or value aborts the walk.
func (s *Scanner) structural(data []byte) *Recovery {
	for pos := 0; pos < len(data); {
		b := data[pos:]

		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil
		}
		m := protowire.ConsumeFieldValue(num, typ, b[n:])
		if m < 0 {
			return nil
		}

		if typ == protowire.BytesType {
			payload, k := protowire.ConsumeBytes(b[n:])
			if k >= 0 {
				if set := s.parse(payload, false); set != nil {
					return &Recovery{
						Set:    set,
						Stage:  StageStructural,
						Offset: pos + n + k - len(payload),
						Length: len(payload),
					}
				}
			}
		}

		pos += n + m
	}
	return nil
}
