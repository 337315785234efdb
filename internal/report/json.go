package report

import (
	"encoding/json"
	"io"
)

// JSONReporter renders the review as JSON for machine consumers.
type JSONReporter struct {
	Indent bool
}

func (r *JSONReporter) Format() string { return "json" }

// jsonReview is the wire shape: the result fields flattened next to
// the omission disclosure.
type jsonReview struct {
	Summary          string      `json:"summary"`
	QualityScore     int         `json:"quality_score"`
	Issues           interface{} `json:"issues"`
	Suggestions      []string    `json:"suggestions"`
	SecurityConcerns []string    `json:"security_concerns"`
	PerformanceNotes []string    `json:"performance_notes"`
	OmittedFiles     []string    `json:"omitted_files"`
}

func (r *JSONReporter) Generate(rev *Review) (string, error) {
	if rev == nil || rev.Result == nil {
		return "", &RenderError{Reason: "nil review result"}
	}

	res := rev.Result
	omitted := rev.OmittedFiles
	if omitted == nil {
		omitted = []string{}
	}

	out := jsonReview{
		Summary:          res.Summary,
		QualityScore:     res.QualityScore,
		Issues:           res.Issues,
		Suggestions:      res.Suggestions,
		SecurityConcerns: res.SecurityConcerns,
		PerformanceNotes: res.PerformanceNotes,
		OmittedFiles:     omitted,
	}

	var data []byte
	var err error
	if r.Indent {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *JSONReporter) Write(rev *Review, w io.Writer) error {
	s, err := r.Generate(rev)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, s+"\n")
	return err
}
