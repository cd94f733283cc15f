package model

import "time"

// Document lifecycle states. A document is searchable only once it is ready.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Document is the catalog row for one uploaded file.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Filename    string    `gorm:"size:512;not null" json:"filename"`
	Title       string    `gorm:"size:512" json:"title"`
	Description string    `gorm:"size:2048" json:"description"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	Size        int64     `json:"size"`
	SHA256      string    `gorm:"column:sha256;size:64" json:"sha256"`
	PageCount   int       `json:"pageCount"`
	ChunkCount  int       `json:"chunkCount"`
	Status      string    `gorm:"size:32;index" json:"status"`
	Error       string    `gorm:"size:1024" json:"error,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func (Document) TableName() string {
	return "documents"
}
