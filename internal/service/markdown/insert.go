// Package markdown holds the editor's markdown helpers: toolbar insertion at a cursor
// selection, preview rendering and word counting.
package markdown

import "unicode/utf8"

// Toolbar markers.
const (
	Bold          = "**"
	Italic        = "*"
	UnorderedList = "- "
	OrderedList   = "1. "
)

// Tool is a toolbar button.
type Tool struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Toolbar lists the editor's buttons in display order.
var Toolbar = []Tool{
	{Name: "bold", Symbol: Bold},
	{Name: "italic", Symbol: Italic},
	{Name: "unordered_list", Symbol: UnorderedList},
	{Name: "ordered_list", Symbol: OrderedList},
}

// Selection is a half-open range [Start, End) of rune offsets. Start == End is a
// cursor.
type Selection struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// normalize clamps both offsets into [0, n] and orders them.
func (s Selection) normalize(n int) Selection {
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > n {
			return n
		}
		return v
	}
	s.Start, s.End = clamp(s.Start), clamp(s.End)
	if s.Start > s.End {
		s.Start, s.End = s.End, s.Start
	}
	return s
}

// IsLinePrefix reports whether symbol is inserted at the start of a line rather than
// wrapped around the selection.
func IsLinePrefix(symbol string) bool {
	return symbol == UnorderedList || symbol == OrderedList
}

// Insert applies a toolbar marker. Line-prefix markers go at the start of the line
// containing the selection start; any other marker wraps the selection. The returned
// selection is the input selection shifted right by the marker length. Inserting the
// same marker twice nests it.
func Insert(text string, sel Selection, symbol string) (string, Selection) {
	runes := []rune(text)
	sel = sel.normalize(len(runes))
	shift := utf8.RuneCountInString(symbol)
	next := Selection{Start: sel.Start + shift, End: sel.End + shift}

	if IsLinePrefix(symbol) {
		lineStart := sel.Start
		for lineStart > 0 && runes[lineStart-1] != '\n' {
			lineStart--
		}
		return string(runes[:lineStart]) + symbol + string(runes[lineStart:]), next
	}

	before := string(runes[:sel.Start])
	selected := string(runes[sel.Start:sel.End])
	after := string(runes[sel.End:])
	return before + symbol + selected + symbol + after, next
}
