package utils

import "testing"

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two sentences", "This is a test. This is only a test!", "This is a test.\nThis is only a test!"},
		{"question", "Ready? Go.", "Ready?\nGo."},
		{"decimal kept", "Version 3.5 shipped. Done", "Version 3.5 shipped.\nDone"},
		{"trailing fragment", "One. two", "One.\ntwo"},
		{"ellipsis", "Wait... what?", "Wait...\nwhat?"},
		{"surrounding space", "  hello.  ", "hello."},
		{"unicode", "Ça va. Très bien!", "Ça va.\nTrès bien!"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSentences(tt.input); got != tt.want {
				t.Errorf("SplitSentences(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
