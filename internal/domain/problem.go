package domain

import "github.com/google/uuid"

// DefaultTestCaseCount is how many test cases of a problem are visible
// to participants before they submit.
const DefaultTestCaseCount = 3

// TestCase holds one input/output pair. Both fields are JSON text:
// input decodes to an array of positional arguments, output to the
// expected return value.
type TestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// BoilerplateCode is the per-language starter code shown in the editor.
type BoilerplateCode struct {
	Python     string `json:"python"`
	JavaScript string `json:"javascript"`
}

// Problem is a full problem, including every test case. Immutable
// within a room.
type Problem struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	Author          PublicUser      `json:"author"`
	Description     string          `json:"description"`
	BoilerplateCode BoilerplateCode `json:"boilerplateCode"`
	TestCases       []TestCase      `json:"testCases"`
	Difficulty      int             `json:"difficulty"`
}

// PublicProblem is the projection shipped to room participants: the
// full test case list is replaced with the first few "default" cases.
type PublicProblem struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Author           PublicUser      `json:"author"`
	Description      string          `json:"description"`
	BoilerplateCode  BoilerplateCode `json:"boilerplateCode"`
	DefaultTestCases []TestCase      `json:"defaultTestCases"`
	Difficulty       int             `json:"difficulty"`
}

// ToPublic substitutes the test cases with the default visible ones.
func (p *Problem) ToPublic() PublicProblem {
	defaults := p.TestCases
	if len(defaults) > DefaultTestCaseCount {
		defaults = defaults[:DefaultTestCaseCount]
	}
	return PublicProblem{
		ID:               p.ID,
		Title:            p.Title,
		Author:           p.Author,
		Description:      p.Description,
		BoilerplateCode:  p.BoilerplateCode,
		DefaultTestCases: defaults,
		Difficulty:       p.Difficulty,
	}
}

// ListingProblem is the light projection used by the problem browser.
type ListingProblem struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Author      PublicUser `json:"author"`
	Description string     `json:"description"`
	Difficulty  int        `json:"difficulty"`
}
