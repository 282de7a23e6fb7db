package protoscan

func (s *Scanner) Windows(remaining int) []int { return s.windows(remaining) }
