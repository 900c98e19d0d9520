package paddle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Charset maps recognition class indices to tokens. Class 0 is the CTC
// blank, class i+1 is Tokens[i] and, when the model has one extra class,
// the last class is a space.
type Charset struct {
	Tokens []string
}

// LoadCharset reads a dictionary file with one token per line.
func LoadCharset(path string) (*Charset, error) {
	if path == "" {
		return nil, errors.New("dictionary path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	cs, err := ReadCharset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cs, nil
}

// ReadCharset parses dictionary lines from r. Surrounding whitespace and a
// leading UTF-8 BOM are removed; empty lines are skipped.
func ReadCharset(r io.Reader) (*Charset, error) {
	scanner := bufio.NewScanner(r)
	tokens := make([]string, 0, 512)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, errors.New("dictionary is empty")
	}
	return &Charset{Tokens: tokens}, nil
}

// Size returns the number of dictionary tokens.
func (c *Charset) Size() int { return len(c.Tokens) }

// Token returns the text for a model class index.
func (c *Charset) Token(class int) string {
	if c == nil || class <= 0 {
		return ""
	}
	if class <= len(c.Tokens) {
		return c.Tokens[class-1]
	}
	if class == len(c.Tokens)+1 {
		return " "
	}
	return ""
}

// Decode joins the tokens for a collapsed class sequence.
func (c *Charset) Decode(classes []int) string {
	var b strings.Builder
	for _, cl := range classes {
		b.WriteString(c.Token(cl))
	}
	return b.String()
}
