package prompt

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Kind
	}{
		{"closed proceed", "Should I proceed with the changes?", YesNo},
		{"open what", "What file should I modify?", TextInput},
		{"two questions", "I found two issues. Should I fix both? Or just the first one?", TextInput},
		{"closed confirm", "Is this correct?", YesNo},
		{"empty", "", TextInput},
		{"whitespace", "   \n\t ", TextInput},
		{"closed want", "Do you want me to run the tests now?", YesNo},
		{"open how", "How would you like the output formatted?", TextInput},
		{"open please provide", "Please provide the API key to use.", TextInput},
		{"short plain question", "Delete the old branch?", YesNo},
		{"long comma question", "I can refactor the parser, split the module, and update the docs, or keep everything in one file, which keeps the diff small but harder to review — want a different split?", TextInput},
		{"closed ready", "Ready to push the branch?", YesNo},
		{"plain report", "Finished updating the dependencies.", TextInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.text); got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyOnlyLooksAtTail(t *testing.T) {
	// An open-ended question far back in the transcript must not
	// override a recent closed question.
	old := "What architecture should we use? " + strings.Repeat("Working on the implementation now. ", 20)
	text := old + "Should I commit the result?"
	if got := Classify(text); got != YesNo {
		t.Errorf("Classify = %v, want %v", got, YesNo)
	}
}

func TestHasQuestion(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"", false},
		{"   ", false},
		{"Done. All files updated.", false},
		{"Should I continue?", true},
		{"Let me know if you want the verbose version.", true},
		{"Please confirm the deletion before I proceed.", true},
		{"Which option do you prefer: A or B?", true},
		{"The build succeeded without warnings.", false},
	}
	for _, tc := range cases {
		if got := HasQuestion(tc.text); got != tc.want {
			t.Errorf("HasQuestion(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
