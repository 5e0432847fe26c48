// Package splitter cuts extracted document text into retrieval
// segments. Markdown is split along its block structure so headings
// and code fences stay intact; everything else falls back to
// paragraph packing with a character budget and overlap.
package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type Config struct {
	MaxChars     int
	OverlapChars int
	MinChars     int
}

func DefaultConfig() Config {
	return Config{MaxChars: 500, OverlapChars: 50, MinChars: 100}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxChars <= 0 {
		c.MaxChars = d.MaxChars
	}
	if c.OverlapChars < 0 || c.OverlapChars >= c.MaxChars {
		c.OverlapChars = d.OverlapChars
	}
	if c.MinChars <= 0 || c.MinChars > c.MaxChars {
		c.MinChars = d.MinChars
	}
	return c
}

// Split returns the ordered segments of content. Empty input yields no
// segments.
func Split(content, mimeType string, cfg Config) []string {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var blocks []string
	if strings.EqualFold(mimeType, "text/markdown") {
		blocks = markdownBlocks(content)
	} else {
		blocks = paragraphBlocks(content)
	}
	return pack(blocks, cfg)
}

func paragraphBlocks(content string) []string {
	parts := strings.Split(content, "\n\n")
	blocks := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			blocks = append(blocks, p)
		}
	}
	return blocks
}

func markdownBlocks(content string) []string {
	md := goldmark.New()
	reader := text.NewReader([]byte(content))
	doc := md.Parser().Parse(reader)
	source := reader.Source()

	var blocks []string
	heading := ""
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading = string(n.Text(source))
		case *ast.FencedCodeBlock:
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(source))
			}
			blocks = append(blocks, withHeading(heading, strings.TrimRight(code.String(), "\n")))
		default:
			txt := blockText(node, source)
			if txt == "" {
				continue
			}
			blocks = append(blocks, withHeading(heading, txt))
		}
	}
	if len(blocks) == 0 {
		return paragraphBlocks(content)
	}
	return blocks
}

func withHeading(heading, body string) string {
	if heading == "" {
		return body
	}
	return heading + "\n" + body
}

func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).HardLineBreak() || node.(*ast.Text).SoftLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// pack joins blocks into segments no longer than MaxChars, splitting
// oversized blocks at sentence boundaries and carrying OverlapChars of
// trailing context into the next segment.
func pack(blocks []string, cfg Config) []string {
	var segments []string
	var current strings.Builder
	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			segments = append(segments, s)
		}
		current.Reset()
	}
	for _, block := range blocks {
		if len(block) > cfg.MaxChars {
			flush()
			segments = append(segments, splitLong(block, cfg)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(block)+2 > cfg.MaxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(block)
	}
	flush()
	return segments
}

func splitLong(block string, cfg Config) []string {
	var segments []string
	start := 0
	for start < len(block) {
		end := start + cfg.MaxChars
		if end >= len(block) {
			segments = append(segments, strings.TrimSpace(block[start:]))
			break
		}
		for end < len(block) && !utf8.RuneStart(block[end]) {
			end++
		}
		if boundary := sentenceBoundary(block, end); boundary > start+cfg.MinChars {
			end = boundary
		}
		segments = append(segments, strings.TrimSpace(block[start:end]))
		next := end - cfg.OverlapChars
		for next > start && !utf8.RuneStart(block[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		start = next
	}
	return segments
}

var sentenceEnders = []string{". ", "! ", "? ", "。", "！", "？", "\n"}

// sentenceBoundary looks backwards from pos for the nearest sentence
// end and returns the index just past it, or pos when none is found.
func sentenceBoundary(s string, pos int) int {
	window := s[:pos]
	best := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(window, ender); idx >= 0 && idx+len(ender) > best {
			best = idx + len(ender)
		}
	}
	if best <= 0 {
		return pos
	}
	return best
}
