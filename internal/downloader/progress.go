package downloader

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamsnip/pkg/calc"
)

// progressPrefix marks lines produced by progressTemplate.
const progressPrefix = "[streamsnip]"

// progressTemplate makes yt-dlp print machine readable progress lines:
// status, downloaded bytes, total, estimated total, eta seconds, speed. Unknown fields are "NA".
var progressTemplate = "download:" + progressPrefix +
	" %(progress.status)s %(progress.downloaded_bytes)s %(progress.total_bytes)s" +
	" %(progress.total_bytes_estimate)s %(progress.eta)s %(progress.speed)s"

// rePercent matches the percentage of a default yt-dlp progress line: [download]  50.0% of ...
var rePercent = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

const templateFields = 6

// ParseProgress extracts the percentage from a default yt-dlp progress line.
func ParseProgress(line string) (float64, bool) {
	m := rePercent.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// parseProgressLine parses either a progressTemplate line or a default progress line.
func parseProgressLine(line string) (Progress, bool) {
	line = strings.TrimSpace(line)

	rest, ok := strings.CutPrefix(line, progressPrefix)
	if !ok {
		pct, ok := ParseProgress(line)
		if !ok {
			return Progress{}, false
		}

		return Progress{Phase: PhaseDownloading, Percent: pct}, true
	}

	fields := strings.Fields(rest)
	if len(fields) != templateFields {
		return Progress{}, false
	}

	p := Progress{
		Phase: Phase(fields[0]),
		Done:  int64(number(fields[1])),
		Total: int64(number(fields[2])),
		ETA:   time.Duration(number(fields[4]) * float64(time.Second)),
		Rate:  number(fields[5]),
	}

	if p.Total == 0 {
		p.Total = int64(number(fields[3]))
	}

	p.Percent = calc.Percent(p.Done, p.Total)

	if p.Phase != PhaseFinished {
		p.Phase = PhaseDownloading
	}

	return p, true
}

// number parses a template field; "NA" and garbage yield 0.
func number(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return v
}

// splitLinesAny is a bufio.SplitFunc that treats \r, \n and \r\n as line ends.
// yt-dlp redraws progress with bare \r when --newline is not honored.
func splitLinesAny(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, data[:i], nil
				}
			} else if !atEOF {
				// need one more byte to tell \r from \r\n
				return 0, nil, nil
			}
		}

		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}

	return 0, nil, nil
}

var _ bufio.SplitFunc = splitLinesAny
