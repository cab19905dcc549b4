package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	hashRun     = regexp.MustCompile(`#+`)
	printfFrame = regexp.MustCompile(`%(0?)(\d*)d`)
)

// OutputPath expands the frame placeholders of pattern. A run of N '#'
// characters becomes the frame zero-padded to N digits; printf verbs of the
// form %d and %0Nd are honoured as well. Patterns without placeholders are
// returned unchanged.
func OutputPath(pattern string, frame int) string {
	if pattern == "" {
		return ""
	}
	if loc := printfFrame.FindStringSubmatchIndex(pattern); loc != nil {
		width := 0
		if loc[4] >= 0 && loc[5] > loc[4] {
			width, _ = strconv.Atoi(pattern[loc[4]:loc[5]])
		}
		return pattern[:loc[0]] + pad(frame, width) + pattern[loc[1]:]
	}
	if hashRun.MatchString(pattern) {
		return hashRun.ReplaceAllStringFunc(pattern, func(run string) string {
			return pad(frame, len(run))
		})
	}
	return pattern
}

func pad(frame, width int) string {
	if width <= 0 {
		return strconv.Itoa(frame)
	}
	if frame < 0 {
		return "-" + fmt.Sprintf("%0*d", width, -frame)
	}
	return fmt.Sprintf("%0*d", width, frame)
}

func expandArgs(args []string, values map[string]string) []string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{"+key+"}", value)
	}
	replacer := strings.NewReplacer(pairs...)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}
