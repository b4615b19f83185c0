// Package textfield computes what a single backspace keystroke removes from
// a calculator input. Offsets are rune indices.
package textfield

// Selection is a half-open range [Start, End) over the text. Start == End
// is a caret.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Caret returns a collapsed selection at pos.
func Caret(pos int) Selection {
	return Selection{Start: pos, End: pos}
}

// Collapsed reports whether the selection is a caret.
func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// Len returns the number of runes covered.
func (s Selection) Len() int {
	return s.End - s.Start
}

// CalculateDeleteRange returns the range one backspace removes.
//
// A non-empty selection is returned as is (ordered and clamped to the
// text). For a caret, the nearest bracket before it decides the span:
//   - no bracket: everything from the start of the text to the caret
//   - '(' right before the caret: the bracket's contents up to its matching
//     ')', or the brackets themselves when they are empty; an unmatched '('
//     falls back to the previous bracket (or the start of the text)
//   - ')' right before the caret: the contents back to the matching '('
//   - a bracket further away: the characters between it and the caret
//
// The result always satisfies 0 <= Start <= End <= len(text).
func CalculateDeleteRange(text string, sel Selection) Selection {
	runes := []rune(text)
	n := len(runes)

	if !sel.Collapsed() {
		start, end := clamp(sel.Start, n), clamp(sel.End, n)
		if start > end {
			start, end = end, start
		}
		return Selection{Start: start, End: end}
	}
	if n == 0 {
		return Caret(0)
	}

	caret := clamp(sel.Start, n)
	switch caret {
	case 0:
		return Caret(0)
	case 1:
		return Selection{Start: 0, End: 1}
	}

	b := lastBracket(runes, caret-1)
	if b < 0 {
		return Selection{Start: 0, End: caret}
	}
	if b != caret-1 {
		return Selection{Start: b + 1, End: caret}
	}

	if runes[b] == '(' {
		closing := matchForward(runes, b)
		switch {
		case closing == caret:
			return Selection{Start: b, End: closing + 1}
		case closing >= 0:
			return Selection{Start: caret, End: closing}
		}
		if p := lastBracket(runes, b-1); p >= 0 {
			return Selection{Start: p + 1, End: caret}
		}
		return Selection{Start: 0, End: caret}
	}

	if open := matchBackward(runes, b); open >= 0 {
		return Selection{Start: open + 1, End: caret}
	}
	end := caret + 1
	if end > n {
		end = n
	}
	return Selection{Start: 0, End: end}
}

// Delete applies CalculateDeleteRange and returns the new text and caret.
func Delete(text string, sel Selection) (string, int) {
	r := CalculateDeleteRange(text, sel)
	runes := []rune(text)
	out := make([]rune, 0, len(runes)-r.Len())
	out = append(out, runes[:r.Start]...)
	out = append(out, runes[r.End:]...)
	return string(out), r.Start
}

func clamp(pos, n int) int {
	if pos < 0 {
		return 0
	}
	if pos > n {
		return n
	}
	return pos
}

func isBracket(r rune) bool {
	return r == '(' || r == ')'
}

// lastBracket scans backward from i for the nearest bracket.
func lastBracket(runes []rune, i int) int {
	for ; i >= 0; i-- {
		if isBracket(runes[i]) {
			return i
		}
	}
	return -1
}

// matchForward returns the index of the ')' closing the '(' at open.
func matchForward(runes []rune, open int) int {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// matchBackward returns the index of the '(' opening the ')' at closing.
func matchBackward(runes []rune, closing int) int {
	depth := 0
	for i := closing; i >= 0; i-- {
		switch runes[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
