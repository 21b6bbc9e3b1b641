// Package parser turns course transcript files into course.Documents.
//
// Supported formats: .txt (structured transcript), .pdf and .docx (plain text
// extraction followed by the same transcript scan). A parse failure is a
// per-file error; folder ingestion logs it and moves on.
//
// Transcript format:
//
//	Course Title: Introduction to Model Context Protocol
//	Course Link: https://example.com/courses/mcp
//	Course Instructor: Jane Doe
//
//	Lesson 0: Welcome
//	Lesson Link: https://example.com/courses/mcp/0
//	<lesson transcript...>
//
//	Lesson 1: Architecture
//	...
//
// Header lines are optional; a file without a Course Title line uses its
// filename stem as the title. A file with no lesson markers is treated as a
// single lesson 0 spanning the whole body.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"coursechat/internal/course"
)

// ParseError reports a failure to parse one file. Folder ingestion treats it
// as non-fatal.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SupportedExt reports whether files with the given extension can be parsed.
func SupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".txt", ".pdf", ".docx":
		return true
	}
	return false
}

// Parse reads one course document. The returned document always validates
// against the index invariants (unique lesson numbers, body per lesson).
func Parse(path string) (*course.Document, error) {
	var (
		text string
		err  error
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		text, err = readText(path)
	case ".pdf":
		text, err = readPDF(path)
	case ".docx":
		text, err = readDOCX(path)
	default:
		err = fmt.Errorf("unsupported file format %q", ext)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	doc := scanTranscript(text, titleFromPath(path))
	if err := doc.Validate(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return doc, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		pageText, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func readDOCX(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	return stripTags(content), nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	lessonPattern     = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)
	lessonLinkPattern = regexp.MustCompile(`^Lesson Link:\s*(\S+)\s*$`)
)

// stripTags removes XML/HTML markup, leaving plain text lines.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "\n")
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// scanTranscript walks the transcript line by line: course header first, then
// lesson sections introduced by "Lesson N: title" markers.
func scanTranscript(text, fallbackTitle string) *course.Document {
	lines := strings.Split(text, "\n")

	c := course.Course{Title: fallbackTitle}

	i := 0
	// Course header: consume leading metadata lines until the first lesson
	// marker or non-header content.
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "Course Title:"):
			if t := strings.TrimSpace(strings.TrimPrefix(line, "Course Title:")); t != "" {
				c.Title = t
			}
			continue
		case strings.HasPrefix(line, "Course Link:"):
			c.Link = strings.TrimSpace(strings.TrimPrefix(line, "Course Link:"))
			continue
		case strings.HasPrefix(line, "Course Instructor:"):
			c.Instructor = strings.TrimSpace(strings.TrimPrefix(line, "Course Instructor:"))
			continue
		}
		break
	}

	var bodies []string
	var body strings.Builder
	inLesson := false

	flush := func() {
		if inLesson {
			bodies = append(bodies, body.String())
		}
		body.Reset()
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		if m := lessonPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			number, err := strconv.Atoi(m[1])
			if err == nil && c.Lesson(number) == nil {
				flush()
				lesson := course.Lesson{Number: number, Title: strings.TrimSpace(m[2])}
				// An optional "Lesson Link:" line directly follows the marker.
				if i+1 < len(lines) {
					if lm := lessonLinkPattern.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
						lesson.Link = lm[1]
						i++
					}
				}
				c.Lessons = append(c.Lessons, lesson)
				inLesson = true
				continue
			}
		}
		// Lesson body, or pre-marker content that becomes the
		// whole-document lesson when no markers exist.
		body.WriteString(line)
		body.WriteString("\n")
	}

	if len(c.Lessons) == 0 {
		// No lesson structure: index the whole transcript as lesson 0.
		c.Lessons = []course.Lesson{{Number: 0, Title: c.Title}}
		bodies = append(bodies, body.String())
		return &course.Document{Course: c, Bodies: bodies}
	}

	flush()
	return &course.Document{Course: c, Bodies: bodies}
}
