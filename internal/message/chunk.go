package message

import (
	"slices"
	"strings"
)

// DefaultMaxLen is Telegram's limit for a single text message, in UTF-16
// code units.
const DefaultMaxLen = 4096

// Chunk splits text into pieces of at most maxLen UTF-16 code units.
//
// Splits happen at line boundaries and every chunk keeps its trailing line
// break. Blocks separated by a blank line stay in one chunk whenever they fit
// in maxLen on their own. A chunk ends where no emphasis element is open
// whenever such a line boundary exists; otherwise the open elements are
// closed at the end of the chunk and reopened at the start of the next one,
// so every chunk is valid markup. Without such forced splits concatenating
// the chunks yields text unchanged. A single line longer than maxLen is cut
// between runes, never inside an HTML tag or entity.
func Chunk(text string, maxLen int) []string {
	if maxLen < 1 {
		maxLen = DefaultMaxLen
	}
	if Units(text) <= maxLen {
		return []string{text}
	}

	segs := segments(text, maxLen)
	var (
		out   []string
		carry []string
	)
	for i := 0; i < len(segs); {
		prefix := openTags(carry)
		budget := maxLen - Units(prefix)

		j, n := i, 0
		best, bestBlock := -1, -1
		for j < len(segs) && n+segs[j].units+len(closeTags(segs[j].open)) <= budget {
			n += segs[j].units
			j++
			if len(segs[j-1].open) == 0 {
				best = j
				if segs[j-1].block {
					bestBlock = j
				}
			}
		}

		if j == i {
			head, tail, ok := splitSegment(segs[i], carry, budget)
			if ok {
				segs[i] = head
				segs = slices.Insert(segs, i+1, tail)
				continue
			}
			// maxLen cannot hold the tags themselves; send the segment as is.
			out = append(out, segs[i].text)
			carry = segs[i].open
			i++
			continue
		}

		end := j
		if j < len(segs) {
			switch {
			case bestBlock > i:
				end = bestBlock
			case best > i:
				end = best
			}
		}

		var b strings.Builder
		b.WriteString(prefix)
		for _, s := range segs[i:end] {
			b.WriteString(s.text)
		}
		carry = segs[end-1].open
		if end < len(segs) {
			b.WriteString(closeTags(carry))
		}
		out = append(out, b.String())
		i = end
	}
	return out
}

// segment is a line, or a piece of an oversized line.
type segment struct {
	text  string
	units int
	// block marks the blank line that ends a block.
	block bool
	// open lists the emphasis elements still open after the segment.
	open []string
}

func segments(text string, maxLen int) []segment {
	var (
		segs []segment
		open []string
	)
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		pieces := []string{line}
		if Units(line) > maxLen {
			pieces = cutLine(line, maxLen)
		}
		for _, p := range pieces {
			open = scanTags(p, open)
			segs = append(segs, segment{text: p, units: Units(p), open: open})
		}
		if line == "\n" || line == "\r\n" {
			segs[len(segs)-1].block = true
		}
	}
	return segs
}

// splitSegment cuts the head off a segment so that it fits in budget together
// with the closing tags it may need. It reports false when even one rune does
// not fit.
func splitSegment(s segment, carry []string, budget int) (head, tail segment, ok bool) {
	worst := slices.Clone(carry)
	eachTag(s.text, func(name string, closing bool) {
		if !closing {
			worst = append(worst, name)
		}
	})
	avail := budget - len(closeTags(worst))
	if avail < 1 {
		return segment{}, segment{}, false
	}
	h := cutLine(s.text, avail)[0]
	if len(h) == len(s.text) {
		return segment{}, segment{}, false
	}
	t := s.text[len(h):]
	head = segment{text: h, units: Units(h), open: scanTags(h, carry)}
	tail = segment{text: t, units: Units(t), block: s.block, open: s.open}
	return head, tail, true
}

// scanTags returns the emphasis elements open after s, given the ones open
// before it.
func scanTags(s string, open []string) []string {
	out := slices.Clone(open)
	eachTag(s, func(name string, closing bool) {
		if !closing {
			out = append(out, name)
			return
		}
		for k := len(out) - 1; k >= 0; k-- {
			if out[k] == name {
				out = slices.Delete(out, k, k+1)
				break
			}
		}
	})
	return out
}

// eachTag calls fn for every emphasis tag in s.
func eachTag(s string, fn func(name string, closing bool)) {
	for i := 0; i < len(s); i++ {
		if s[i] != '<' {
			continue
		}
		j := strings.IndexByte(s[i:], '>')
		if j < 0 {
			return
		}
		if name, closing := tagName(s[i : i+j+1]); emphasisTags[name] {
			fn(name, closing)
		}
		i += j
	}
}

func openTags(names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString("<" + n + ">")
	}
	return b.String()
}

func closeTags(names []string) string {
	var b strings.Builder
	for k := len(names) - 1; k >= 0; k-- {
		b.WriteString("</" + names[k] + ">")
	}
	return b.String()
}

// Units returns the length of s in UTF-16 code units.
func Units(s string) int {
	n := 0
	for _, r := range s {
		n += runeUnits(r)
	}
	return n
}

func runeUnits(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// cutLine splits an oversized line into pieces of at most maxLen units.
func cutLine(line string, maxLen int) []string {
	rs := []rune(line)
	var out []string
	start := 0
	for start < len(rs) {
		end, n := start, 0
		for end < len(rs) {
			w := runeUnits(rs[end])
			if n+w > maxLen {
				break
			}
			n += w
			end++
		}
		if end == start {
			// maxLen smaller than one rune; emit it alone.
			end = start + 1
		}
		if end < len(rs) {
			end = safeCut(rs, start, end)
		}
		out = append(out, string(rs[start:end]))
		start = end
	}
	return out
}

// safeCut moves a cut position in rs[start:end] back so it does not fall
// inside a tag, an entity or an open emphasis element. It returns end when no
// better position exists.
func safeCut(rs []rune, start, end int) int {
	cut := end
	var open []int
	for i := start; i < end; i++ {
		switch rs[i] {
		case '<':
			j := indexRune(rs, i, end, '>')
			if j < 0 {
				cut = min(cut, i)
				i = end
				continue
			}
			if name, closing := tagName(string(rs[i : j+1])); emphasisTags[name] {
				if closing && len(open) > 0 {
					open = open[:len(open)-1]
				} else if !closing {
					open = append(open, i)
				}
			}
			i = j
		case '&':
			if j := indexRune(rs, i, min(i+12, len(rs)), ';'); j >= end {
				cut = min(cut, i)
			}
		}
	}
	if len(open) > 0 {
		cut = min(cut, open[0])
	}
	if cut <= start {
		return end
	}
	return cut
}

func indexRune(rs []rune, from, to int, r rune) int {
	for i := from; i < to; i++ {
		if rs[i] == r {
			return i
		}
	}
	return -1
}
