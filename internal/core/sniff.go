package core

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// DefaultSniffSampleBytes is how much of a file the sniffer inspects.
const DefaultSniffSampleBytes = 8192

// sniffCandidates lists the separators the sniffer may choose, in tie-break order.
var sniffCandidates = []rune{',', ';', '\t', '|'}

// sniffAgreement is the minimum share of sampled lines that must have the
// modal field count for a candidate to qualify.
const sniffAgreement = 0.9

// SniffDelimiter picks the field separator for a CSV sample.
//
// Each candidate splits the sample with a quote-aware reader. A candidate
// qualifies when its modal field count is above one, the header line has that
// count, and at least 90% of lines agree. Among qualifying candidates the
// highest agreement wins, then the most fields, then candidate order. When
// nothing qualifies the result is ','.
func SniffDelimiter(sample []byte) rune {
	return sniff(sample, false)
}

// sniff does the work of SniffDelimiter. truncated reports that the sample
// was cut from a longer stream, so its last line may be partial.
func sniff(sample []byte, truncated bool) rune {
	if truncated {
		if nl := bytes.LastIndexByte(sample, '\n'); nl >= 0 {
			sample = sample[:nl+1]
		}
	}

	best := ','
	bestScore := 0.0
	bestFields := 0

	for _, delim := range sniffCandidates {
		counts := fieldCounts(sample, delim)
		if len(counts) == 0 {
			continue
		}

		mode, agree := modalCount(counts)
		if mode < 2 || counts[0] != mode {
			continue
		}
		score := float64(agree) / float64(len(counts))
		if score < sniffAgreement {
			continue
		}

		if score > bestScore || (score == bestScore && mode > bestFields) {
			best, bestScore, bestFields = delim, score, mode
		}
	}

	return best
}

// fieldCounts returns the number of fields on each record of the sample.
// Parsing stops at the first error; records before it still count.
func fieldCounts(sample []byte, delim rune) []int {
	r := csv.NewReader(bytes.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	var counts []int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if isEmptyRow(rec) {
			continue
		}
		counts = append(counts, len(rec))
	}
	return counts
}

// modalCount returns the most common value and how often it appears.
// Ties go to the larger value.
func modalCount(counts []int) (mode, freq int) {
	seen := make(map[int]int, 4)
	for _, c := range counts {
		seen[c]++
	}
	for c, n := range seen {
		if n > freq || (n == freq && c > mode) {
			mode, freq = c, n
		}
	}
	return mode, freq
}

// isEmptyRow checks if a row contains only empty or whitespace values.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
