package session

import (
	"strings"
	"testing"
)

func TestTranscriptBounded(t *testing.T) {
	tr := NewTranscript(4)
	for i := 0; i < 10; i++ {
		tr.Append("user", "msg")
	}
	if tr.Len() != 4 {
		t.Errorf("Len = %d, want 4", tr.Len())
	}
}

func TestTranscriptEvictsOldest(t *testing.T) {
	tr := NewTranscript(2)
	tr.Append("user", "первое")
	tr.Append("assistant", "второе")
	tr.Append("user", "третье")

	turns := tr.Turns()
	if turns[0].Content != "второе" || turns[1].Content != "третье" {
		t.Errorf("turns = %+v", turns)
	}
}

func TestTranscriptFormat(t *testing.T) {
	tr := NewTranscript(10)
	tr.Append("user", "как дела?")
	tr.Append("assistant", "отлично")

	got := tr.Format()
	if !strings.Contains(got, "👤 как дела?") {
		t.Errorf("missing user marker: %q", got)
	}
	if !strings.Contains(got, "🤖 отлично") {
		t.Errorf("missing assistant marker: %q", got)
	}
	if !strings.Contains(got, "\n\n") {
		t.Errorf("turns should be blank-line separated: %q", got)
	}

	if NewTranscript(5).Format() != "" {
		t.Error("empty transcript should format to empty string")
	}
}
