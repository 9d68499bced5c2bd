package models

import "time"

type Metadata map[string]any

func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Merge returns a copy of m with patch applied on top. Only top-level keys are
// considered; nested values are replaced, not merged.
func (m Metadata) Merge(patch Metadata) Metadata {
	out := m.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

type ImageRecord struct {
	// ID is the backend's own row/document id. It never leaves the database
	// package in query results.
	ID         string    `json:"-"`
	Account    string    `json:"account"`
	Identifier string    `json:"imageIdentifier"`
	Checksum   string    `json:"checksum"`
	Size       int64     `json:"size"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Mime       string    `json:"mime"`
	Extension  string    `json:"extension"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Added      time.Time `json:"added"`
	Updated    time.Time `json:"updated"`
}

// ImageState is the value threaded through a transformation pipeline.
type ImageState struct {
	Blob      []byte
	Width     int
	Height    int
	Mime      string
	Extension string
}

// DerivedFields are computed from the uploaded bytes before storing.
type DerivedFields struct {
	Width     int
	Height    int
	Mime      string
	Extension string
}
