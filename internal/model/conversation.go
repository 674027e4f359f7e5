package model

type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type AnswerTransaction struct {
	DocumentID string   `json:"id"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Context    []string `json:"-"`
}
