package collector

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// CounterPattern matches the Hatena counter image the bookmark endpoint
// redirects to, e.g.
//
//	https://b.st-hatena.com/images/counter/default/00/00/0000653.gif
//
// The first two digit groups only shard the path. Whatever follows the file
// name (query, fragment) is ignored. The host is left out so that mirrors
// and test servers match as well.
var CounterPattern = regexp.MustCompile(`/images/counter/default/\d+/\d+/(\d+)\.gif`)

// ExtractCounter returns the counter encoded in a terminal counter image URL.
func ExtractCounter(terminalURL string) (int, error) {
	m := CounterPattern.FindStringSubmatch(terminalURL)
	if m == nil {
		return 0, &ParseError{Input: terminalURL, Err: errors.New("not a counter image url")}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &ParseError{Input: terminalURL, Err: err}
	}
	return n, nil
}
