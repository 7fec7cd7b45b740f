package models

// StudyResult is the generated study set. Field names follow the JSON shape the
// model is asked to return.
type StudyResult struct {
	Overview   string      `json:"overview"`
	KeyTerms   []string    `json:"keyTerms"`
	Flashcards []Flashcard `json:"flashcards"`
	MCQs       []MCQ       `json:"mcqs"`
	Notes      []string    `json:"notes"`
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// MCQ carries four options; Answer is expected to equal one of them but this is
// not validated.
type MCQ struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Normalize replaces nil lists with empty ones so clients always get arrays.
func (r *StudyResult) Normalize() {
	if r.KeyTerms == nil {
		r.KeyTerms = []string{}
	}
	if r.Flashcards == nil {
		r.Flashcards = []Flashcard{}
	}
	if r.MCQs == nil {
		r.MCQs = []MCQ{}
	}
	if r.Notes == nil {
		r.Notes = []string{}
	}
}

func EmptyStudyResult() StudyResult {
	r := StudyResult{}
	r.Normalize()
	return r
}
