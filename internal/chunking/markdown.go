package chunking

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/AsnaSiddiqui/Physical-AI-Humanoid-Robotics-Books/pkg/types"
)

// MarkdownChunker splits markdown chapters at headings, then by size with overlap
type MarkdownChunker struct {
	maxSize int
	overlap int
}

// NewMarkdownChunker creates a heading-aware markdown chunker
func NewMarkdownChunker(maxSize, overlap int) *MarkdownChunker {
	defaults := DefaultChunkOptions()
	if maxSize <= 0 {
		maxSize = defaults.MaxSize
	}
	if overlap < 0 {
		overlap = defaults.Overlap
	}
	return &MarkdownChunker{
		maxSize: maxSize,
		overlap: overlap,
	}
}

// Chunk splits markdown into passages. Headings inside fenced code blocks are
// ignored and YAML front matter is skipped.
func (c *MarkdownChunker) Chunk(ctx context.Context, content string, opts ChunkOptions) ([]types.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = c.maxSize
	}
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = c.overlap
	}

	lines := strings.Split(content, "\n")
	first := skipFrontMatter(lines)

	var (
		chunks    []types.Chunk
		current   strings.Builder
		heading   string
		startLine = first + 1
		inFence   bool
	)

	flush := func(endLine int) {
		text := strings.TrimSpace(current.String())
		current.Reset()
		if text == "" || isHeadingOnly(text) {
			return
		}
		chunks = append(chunks, types.Chunk{
			Content:   text,
			StartLine: startLine,
			EndLine:   endLine,
			Heading:   heading,
		})
	}

	for i := first; i < len(lines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := lines[i]
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		}

		switch {
		case !inFence && isHeading(trimmed):
			flush(lineNum - 1)
			heading = headingText(trimmed)
			startLine = lineNum

		case current.Len() > 0 && current.Len()+len(line)+1 > maxSize:
			previous := strings.TrimSpace(current.String())
			flush(lineNum - 1)
			if overlap > 0 {
				if tail := findOverlapStart(previous, overlap); tail != "" {
					current.WriteString(tail)
					current.WriteString("\n")
				}
			}
			startLine = lineNum
		}

		current.WriteString(line)
		current.WriteString("\n")
	}

	flush(len(lines))

	return chunks, nil
}

// ChunkFile reads and chunks a file
func (c *MarkdownChunker) ChunkFile(ctx context.Context, path string) ([]types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return c.Chunk(ctx, string(content), ChunkOptions{
		MaxSize: c.maxSize,
		Overlap: c.overlap,
	})
}

// SupportedExtensions returns the file types the book is written in
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".mdx", ".markdown", ".txt"}
}

// skipFrontMatter returns the index of the first line after a leading --- block
func skipFrontMatter(lines []string) int {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return i + 1
		}
	}
	return 0
}

// isHeading reports whether a trimmed line is an ATX heading (# to ######)
func isHeading(trimmed string) bool {
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return false
	}
	return len(trimmed) > level && trimmed[level] == ' '
}

func headingText(trimmed string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimLeft(trimmed, "#"), "#"))
}

func isHeadingOnly(text string) bool {
	return !strings.Contains(text, "\n") && isHeading(text)
}

// findOverlapStart returns the tail of content to repeat at the start of the
// next chunk, cut at a line boundary when one exists and never inside a
// multibyte character
func findOverlapStart(content string, overlap int) string {
	if len(content) <= overlap {
		return content
	}

	lastPart := content[len(content)-overlap:]
	for len(lastPart) > 0 && !utf8.RuneStart(lastPart[0]) {
		lastPart = lastPart[1:]
	}
	if idx := strings.Index(lastPart, "\n"); idx != -1 {
		return lastPart[idx+1:]
	}
	return lastPart
}
