package ai

import (
	"strings"
	"unicode"
)

// SmoothStream re-chunks raw token bursts into word-sized increments for
// display pacing. It buffers and re-segments only; concatenating the output
// always reproduces the input exactly, in order, and empty segments are never
// emitted.
func SmoothStream(in <-chan string) <-chan string {
	out := make(chan string, 16)

	go func() {
		defer close(out)

		var pending strings.Builder
		for delta := range in {
			if delta == "" {
				continue
			}
			pending.WriteString(delta)
			emitted := emitWords(pending.String(), out)
			if emitted > 0 {
				rest := pending.String()[emitted:]
				pending.Reset()
				pending.WriteString(rest)
			}
		}
		if pending.Len() > 0 {
			out <- pending.String()
		}
	}()

	return out
}

// emitWords sends every complete word (a run of non-space followed by its
// trailing whitespace) and returns how many bytes were consumed. A trailing
// run without whitespace is left for the next delta.
func emitWords(s string, out chan<- string) int {
	consumed := 0
	for {
		rest := s[consumed:]
		end := wordEnd(rest)
		if end < 0 {
			return consumed
		}
		out <- rest[:end]
		consumed += end
	}
}

func wordEnd(s string) int {
	inSpace := false
	for i, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			// first non-space after whitespace closes the previous word
			return i
		}
	}
	return -1
}
