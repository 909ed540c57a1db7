package judge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/radixapp/radix/internal/domain"
)

//go:embed templates/python-runner.py
var pythonTemplate string

//go:embed templates/javascript-runner.js
var javascriptTemplate string

// language names as they appear in client payloads
const (
	LanguagePython     = "python"
	LanguageJavaScript = "javascript"
)

type languageSpec struct {
	pistonName string
	version    string
	filename   string
	template   string
}

var languages = map[string]languageSpec{
	LanguagePython: {
		pistonName: "python",
		version:    "3.10.0",
		filename:   "main.py",
		template:   pythonTemplate,
	},
	LanguageJavaScript: {
		pistonName: "javascript",
		version:    "18.15.0",
		filename:   "main.js",
		template:   javascriptTemplate,
	},
}

// Supported reports whether we can judge code in the given language.
func Supported(language string) bool {
	_, ok := languages[language]
	return ok
}

// renderHarness builds the test driver appended below the user's code.
// Test case inputs are JSON arrays of arguments to the solve function;
// inputs that fail to parse are silently skipped.
func renderHarness(spec languageSpec, testCases []domain.TestCase) (string, error) {
	inputs := make([]json.RawMessage, 0, len(testCases))
	for _, tc := range testCases {
		var parsed json.RawMessage
		if err := json.Unmarshal([]byte(tc.Input), &parsed); err != nil {
			continue
		}
		inputs = append(inputs, parsed)
	}

	encoded, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("encode test inputs: %w", err)
	}
	return strings.Replace(spec.template, "{{INPUTS}}", string(encoded), 1), nil
}
