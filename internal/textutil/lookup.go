package textutil

import "strings"

// Pair is one KEY/VALUE entry from decoded reply text.
type Pair struct {
	Key   string
	Value string
}

// ValueForKey scans text two lines at a time and returns the line following
// the first key line equal to key. Surrounding whitespace on the key line is
// ignored. A key on the final line has no value and is not a match.
func ValueForKey(text, key string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i := 0; i+1 < len(lines); i += 2 {
		if strings.TrimSpace(lines[i]) == key {
			return lines[i+1], true
		}
	}
	return "", false
}

// Pairs splits text into KEY/VALUE entries. A dangling final key is returned
// with an empty value.
func Pairs(text string) []Pair {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	pairs := make([]Pair, 0, (len(lines)+1)/2)
	for i := 0; i < len(lines); i += 2 {
		pair := Pair{Key: strings.TrimSpace(lines[i])}
		if i+1 < len(lines) {
			pair.Value = lines[i+1]
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
