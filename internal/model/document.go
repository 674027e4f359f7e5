package model

// Document is the registry record of an ingested file. It is written once
// and never mutated.
type Document struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	IndexLocation string `json:"index_location"`
	ExternalRef   string `json:"external_ref"`
	Ctime         int64  `json:"ctime"`
}

// Chunk is a slice of a document's extracted text. Chunks only live for the
// duration of an ingestion.
type Chunk struct {
	Position int    `json:"position"`
	Content  string `json:"content"`
}
