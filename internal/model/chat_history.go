package model

import (
	"encoding/json"
	"time"
)

// SourceRef identifies a chunk that grounded an answer.
type SourceRef struct {
	DocumentID   uint   `json:"document_id"`
	DocumentName string `json:"document_name"`
	Ordinal      int    `json:"ordinal"`
}

// ChatHistory is one question/answer exchange. Rows are immutable once
// written.
type ChatHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Sources   string    `gorm:"type:text" json:"-"` // JSON array of SourceRef
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry is the API/cache view of an exchange, with sources parsed.
type HistoryEntry struct {
	ID        uint        `json:"id"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Sources   []SourceRef `json:"sources"`
	CreatedAt time.Time   `json:"created_at"`
}

// View converts the row into its API shape.
func (h *ChatHistory) View() HistoryEntry {
	sources := h.SourceRefs()
	if sources == nil {
		sources = []SourceRef{}
	}
	return HistoryEntry{
		ID:        h.ID,
		Question:  h.Question,
		Answer:    h.Answer,
		Sources:   sources,
		CreatedAt: h.CreatedAt,
	}
}

// SourceRefs returns the parsed source list; empty on parse error.
func (h *ChatHistory) SourceRefs() []SourceRef {
	if h.Sources == "" {
		return nil
	}
	var refs []SourceRef
	_ = json.Unmarshal([]byte(h.Sources), &refs)
	return refs
}

// SetSourceRefs stores the source list as JSON.
func (h *ChatHistory) SetSourceRefs(refs []SourceRef) {
	if len(refs) == 0 {
		h.Sources = "[]"
		return
	}
	b, _ := json.Marshal(refs)
	h.Sources = string(b)
}
