// Package m3u parses extended-M3U playlist text into channel entries.
//
// The format is line-oriented: a #EXTINF metadata line carries the display
// name plus tvg-logo / group-title attributes, and the following line is the
// stream URL. Real-world playlists are frequently malformed (missing metadata
// lines, consecutive URL lines); the parser degrades to fewer or
// partially-filled entries instead of failing.
package m3u

import (
	"bufio"
	"io"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// Channel is one parsed playlist entry. StreamURL is always non-empty;
// Name, Logo and Category may be empty when the source omits them.
type Channel struct {
	Name      string
	Logo      string
	Category  string
	StreamURL string
}

// Parse parses playlist text. It never fails: malformed input yields fewer
// (or zero) entries.
func Parse(text string) []Channel {
	// strings.Reader never returns a read error, and oversized lines just
	// truncate the result set.
	channels, _ := ParseReader(strings.NewReader(text))
	return channels
}

// ParseReader parses a playlist from r in a streaming fashion. The returned
// error is only ever a read error from r (or a line exceeding 1 MiB); entries
// scanned up to that point are still returned.
func ParseReader(r io.Reader) ([]Channel, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var channels []Channel
	var name, logo, category string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#EXTINF"):
			name = extinfName(line)
			logo = attrValue(line, "tvg-logo")
			category = attrValue(line, "group-title")
		case strings.HasPrefix(line, "http"):
			channels = append(channels, Channel{
				Name:      name,
				Logo:      logo,
				Category:  category,
				StreamURL: line,
			})
			// Pending fields intentionally persist: playlists with
			// consecutive URL lines reuse the last metadata seen.
		}
	}
	return channels, sc.Err()
}

// extinfName returns the display name: everything after the first comma,
// trimmed. A #EXTINF line without a comma yields the whole line.
func extinfName(line string) string {
	if i := strings.Index(line, ","); i >= 0 {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

// attrValue extracts a quoted attribute value like tvg-logo="..." from an
// EXTINF line. First occurrence wins; missing attribute yields "".
func attrValue(line, attr string) string {
	prefix := attr + `="`
	i := strings.Index(line, prefix)
	if i < 0 {
		return ""
	}
	i += len(prefix)
	j := strings.Index(line[i:], `"`)
	if j < 0 {
		return ""
	}
	return line[i : i+j]
}
