package pro

import (
	"regexp"
	"strconv"
)

// Progress is one parsed progress marker from the tool's output.
type Progress struct {
	Done       int
	Total      int
	Percentage int
}

// progressRE matches markers of the form `12/50 [====>    ] 24%`.
var progressRE = regexp.MustCompile(`(\d+)/(\d+)\s*\[[^\]]*\]\s*(\d+)\s*%`)

// ParseProgress returns the last progress marker found in chunk. A redrawing
// progress bar can deliver several markers in one chunk; only the newest one
// is meaningful.
func ParseProgress(chunk string) (Progress, bool) {
	matches := progressRE.FindAllStringSubmatch(chunk, -1)
	if len(matches) == 0 {
		return Progress{}, false
	}
	m := matches[len(matches)-1]
	done, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	pct, _ := strconv.Atoi(m[3])
	return Progress{Done: done, Total: total, Percentage: pct}, true
}
