package models

// Entity is a single detected span. Text is the exact surface text of the span in the
// analysed sentence.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// LabelsResponse is the only document the extractor ever returns:
// {"labels": [...]}
type LabelsResponse struct {
	Labels []string `json:"labels" jsonschema:"required"`
}

// ProcessRequest is the body of a WrapperInterface call.
type ProcessRequest struct {
	Sentence string `json:"sentence"`
	Target   string `json:"target,omitempty"`
}

// The types below mirror the NLP server's /entities contract.

type EntityMatch struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type ServerEntity struct {
	Name    string        `json:"name"`
	Label   string        `json:"label"`
	Matches []EntityMatch `json:"matches"`
}

type EntityRequestRecord struct {
	UUID     string `json:"uuid"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type EntityResponseRecord struct {
	UUID     string         `json:"uuid"`
	Entities []ServerEntity `json:"entities"`
}

type EntityRequest struct {
	Model string                `json:"model"`
	Texts []EntityRequestRecord `json:"texts"`
}

type EntityResponse struct {
	Texts []EntityResponseRecord `json:"texts"`
}
