// Package rda holds the catalogue of valid Russian District Award codes.
package rda

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/text/encoding/charmap"
)

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	codeRe  = regexp.MustCompile(`^[A-Z]{2}-\d{2}$`)
	fieldRe = regexp.MustCompile(`[;\t ,]+`)

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}

	// Legacy encodings tried in order when the file is not UTF-8.
	fallbacks = []*charmap.Charmap{charmap.Windows1251, charmap.KOI8R, charmap.ISO8859_1}
)

// Valid reports whether code has the XX-NN shape of an RDA code.
func Valid(code string) bool {
	return codeRe.MatchString(code)
}

// Catalogue is a set of known RDA codes. A nil or empty Catalogue knows
// nothing and accepts every well-formed code.
type Catalogue struct {
	codes map[string]struct{}
}

// Load reads a catalogue from a JSON array of codes or from a CSV file whose
// first column holds the code. The format is chosen by file extension.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read rda list: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(data)
	}
	return ParseCSV(data), nil
}

// ParseJSON parses a JSON array of codes. Malformed entries are skipped.
func ParseJSON(data []byte) (*Catalogue, error) {
	var list []string
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &list); err != nil {
		return nil, fmt.Errorf("decode rda list: %w", err)
	}
	c := &Catalogue{codes: make(map[string]struct{}, len(list))}
	for _, code := range list {
		c.add(code)
	}
	return c, nil
}

// ParseCSV takes the first field of every line, splitting on semicolons,
// tabs, spaces and commas. Lines whose first field is not a code are skipped.
func ParseCSV(data []byte) *Catalogue {
	c := &Catalogue{codes: make(map[string]struct{})}
	for _, line := range strings.Split(decode(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.add(fieldRe.Split(line, 2)[0])
	}
	return c
}

func (c *Catalogue) add(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if Valid(code) {
		c.codes[code] = struct{}{}
	}
}

// Len returns the number of known codes.
func (c *Catalogue) Len() int {
	if c == nil {
		return 0
	}
	return len(c.codes)
}

// Known reports whether code is acceptable: well-formed and, when the
// catalogue is loaded, listed in it.
func (c *Catalogue) Known(code string) bool {
	if !Valid(code) {
		return false
	}
	if c.Len() == 0 {
		return true
	}
	_, ok := c.codes[code]
	return ok
}

// Split partitions codes into known and unknown ones, upper-casing and
// de-duplicating them while keeping their order.
func (c *Catalogue) Split(codes []string) (known, unknown []string) {
	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		if c.Known(code) {
			known = append(known, code)
		} else {
			unknown = append(unknown, code)
		}
	}
	return known, unknown
}

func decode(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	for _, cm := range fallbacks {
		out, err := cm.NewDecoder().Bytes(data)
		if err == nil && !bytes.ContainsRune(out, utf8.RuneError) {
			return string(out)
		}
	}
	return string(data)
}
