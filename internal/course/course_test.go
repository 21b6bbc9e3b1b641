package course

import (
	"strings"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestCourse_Lesson(t *testing.T) {
	c := Course{
		Title: "Test",
		Lessons: []Lesson{
			{Number: 0, Title: "Intro"},
			{Number: 3, Title: "Jumped"},
		},
	}

	if l := c.Lesson(3); l == nil || l.Title != "Jumped" {
		t.Errorf("Lesson(3) = %+v", l)
	}
	if l := c.Lesson(1); l != nil {
		t.Errorf("Lesson(1) = %+v, want nil", l)
	}
}

func TestCitation_Label(t *testing.T) {
	withLesson := Citation{CourseTitle: "Introduction to MCP", LessonNumber: intPtr(2)}
	if got := withLesson.Label(); got != "Introduction to MCP - Lesson 2" {
		t.Errorf("Label() = %q", got)
	}

	courseOnly := Citation{CourseTitle: "Introduction to MCP"}
	if got := courseOnly.Label(); got != "Introduction to MCP" {
		t.Errorf("Label() = %q", got)
	}
}

func TestCitation_Key(t *testing.T) {
	a := Citation{CourseTitle: "C", LessonNumber: intPtr(1)}
	b := Citation{CourseTitle: "C", LessonNumber: intPtr(1), Link: "different link"}
	if a.Key() != b.Key() {
		t.Error("citations differing only by link must share a key")
	}

	c := Citation{CourseTitle: "C", LessonNumber: intPtr(2)}
	if a.Key() == c.Key() {
		t.Error("different lessons must have different keys")
	}
	d := Citation{CourseTitle: "C"}
	if a.Key() == d.Key() {
		t.Error("lesson-less citation must differ from lesson citation")
	}
}

func TestDocument_Validate(t *testing.T) {
	valid := Document{
		Course: Course{
			Title:   "Valid",
			Lessons: []Lesson{{Number: 1, Title: "A"}, {Number: 2, Title: "B"}},
		},
		Bodies: []string{"one", "two"},
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	noTitle := valid
	noTitle.Course.Title = "   "
	if err := noTitle.Validate(); err == nil {
		t.Error("blank title must fail validation")
	}

	mismatch := valid
	mismatch.Bodies = []string{"only one"}
	if err := mismatch.Validate(); err == nil || !strings.Contains(err.Error(), "bodies") {
		t.Errorf("body count mismatch error = %v", err)
	}

	dup := Document{
		Course: Course{
			Title:   "Dup",
			Lessons: []Lesson{{Number: 1, Title: "A"}, {Number: 1, Title: "B"}},
		},
		Bodies: []string{"one", "two"},
	}
	if err := dup.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate lesson error = %v", err)
	}
}
