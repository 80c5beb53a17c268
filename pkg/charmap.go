package pkg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hansbonini/issdtools/pkg/common"
)

// foldExceptions covers letters that do not decompose into a base letter
// and combining marks.
var foldExceptions = map[rune]string{
	'ø': "o", 'Ø': "O",
	'ß': "ss",
	'ı': "i",
	'đ': "d", 'Đ': "D",
	'ł': "l", 'Ł': "L",
	'æ': "ae", 'Æ': "AE",
	'œ': "oe", 'Œ': "OE",
}

// Charmap is a two-way mapping between game tile codes and text, read from
// the "XX=text" table files used by the disassembly.
type Charmap struct {
	decode map[byte]string
	encode map[string]byte
	keys   []string // encode keys, longest first
}

// LoadCharmap reads a table file from disk.
func LoadCharmap(path string) (*Charmap, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, common.FormatError(common.ErrFailedToLoadCharmap, err)
	}
	defer file.Close()

	return ParseCharmap(file)
}

// ParseCharmap reads table lines. Blank lines and lines starting with ';' or
// '#' are ignored. The text after '=' is taken verbatim, so "00= " maps a space.
func ParseCharmap(r io.Reader) (*Charmap, error) {
	c := &Charmap{
		decode: make(map[byte]string),
		encode: make(map[string]byte),
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" || text[0] == ';' || text[0] == '#' {
			continue
		}

		code, value, ok := strings.Cut(text, "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("line %d: expected XX=text, got %q", line, text)
		}
		n, err := strconv.ParseUint(strings.TrimSpace(code), 16, 8)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid code %q: %w", line, code, err)
		}

		b := byte(n)
		if _, dup := c.decode[b]; !dup {
			c.decode[b] = value
		}
		if _, dup := c.encode[value]; !dup {
			c.encode[value] = b
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.FormatError(common.ErrFailedToLoadCharmap, err)
	}

	for k := range c.encode {
		c.keys = append(c.keys, k)
	}
	sort.Slice(c.keys, func(i, j int) bool {
		if len(c.keys[i]) != len(c.keys[j]) {
			return len(c.keys[i]) > len(c.keys[j])
		}
		return c.keys[i] < c.keys[j]
	})
	return c, nil
}

// Decode renders codes as text. Codes without an entry become "[XX]".
func (c *Charmap) Decode(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if s, ok := c.decode[b]; ok {
			sb.WriteString(s)
		} else {
			fmt.Fprintf(&sb, "[%02X]", b)
		}
	}
	return sb.String()
}

// Encode converts text to codes, preferring the longest table entry at each
// position. "[XX]" inserts a raw code.
func (c *Charmap) Encode(text string) ([]byte, error) {
	return c.toCodes(text, false)
}

// EncodeFolded is Encode with accented letters missing from the table
// replaced by their base letters, so "JOÃO" encodes as "JOAO".
func (c *Charmap) EncodeFolded(text string) ([]byte, error) {
	return c.toCodes(text, true)
}

func (c *Charmap) toCodes(text string, fold bool) ([]byte, error) {
	var out []byte
	for i := 0; i < len(text); {
		if raw, ok := parseRawCode(text[i:]); ok {
			out = append(out, raw)
			i += 4
			continue
		}
		if code, n, ok := c.match(text[i:]); ok {
			out = append(out, code)
			i += n
			continue
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		if fold {
			if folded := foldRune(r); folded != string(r) {
				if codes, err := c.toCodes(folded, false); err == nil {
					out = append(out, codes...)
					i += size
					continue
				}
			}
		}
		return nil, fmt.Errorf("%s: %q at position %d", common.ErrUnmappableCharacter, string(r), i)
	}
	return out, nil
}

// match finds the longest table entry at the start of s.
func (c *Charmap) match(s string) (byte, int, bool) {
	for _, k := range c.keys {
		if strings.HasPrefix(s, k) {
			return c.encode[k], len(k), true
		}
	}
	return 0, 0, false
}

// foldRune strips combining marks from r.
func foldRune(r rune) string {
	if s, ok := foldExceptions[r]; ok {
		return s
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, string(r))
	if err != nil {
		return string(r)
	}
	return s
}

// Pad returns the code used to fill short records: the space entry when the
// table has one, else 0x00.
func (c *Charmap) Pad() byte {
	if b, ok := c.encode[" "]; ok {
		return b
	}
	return 0x00
}

func parseRawCode(s string) (byte, bool) {
	if len(s) < 4 || s[0] != '[' || s[3] != ']' {
		return 0, false
	}
	n, err := strconv.ParseUint(s[1:3], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}
