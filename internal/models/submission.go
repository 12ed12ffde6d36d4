package models

import (
	"database/sql/driver"
	"time"
)

// Attachment is one file collected for a submission. FileID is the chat
// platform's file identifier and keys idempotent matching of repeated uploads.
type Attachment struct {
	ResourceID string `json:"resourceId"`
	URL        string `json:"url"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	Uploading  bool   `json:"uploading,omitempty"`
	FileID     string `json:"file_id,omitempty"`
}

type Attachments []Attachment

// IndexOfFile returns the position of the attachment with the given file id, or -1.
func (a Attachments) IndexOfFile(fileID string) int {
	for i, att := range a {
		if att.FileID == fileID {
			return i
		}
	}
	return -1
}

// AnyUploading reports whether any attachment is still being ingested.
func (a Attachments) AnyUploading() bool {
	for _, att := range a {
		if att.Uploading {
			return true
		}
	}
	return false
}

// ResourceIDs lists backend resource ids of finished attachments.
func (a Attachments) ResourceIDs() []string {
	ids := make([]string, 0, len(a))
	for _, att := range a {
		if att.Uploading || att.ResourceID == "" {
			continue
		}
		ids = append(ids, att.ResourceID)
	}
	return ids
}

func (a *Attachments) Scan(value interface{}) error {
	var out Attachments
	if err := scanJSON(value, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	return valueJSON([]Attachment(a))
}

// AssignmentSnapshot keeps what the workflow message needs from the assignment detail.
type AssignmentSnapshot struct {
	Title   string `json:"title"`
	Course  string `json:"course,omitempty"`
	EndTime string `json:"end_time,omitempty"`
}

func (s *AssignmentSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

func (s AssignmentSnapshot) Value() (driver.Value, error) {
	return valueJSON(s)
}

// Submission is the persisted state of one user's submission workflow. There
// is at most one row per username. Version is bumped on every write and used
// as a compare-and-swap guard; SessionKey identifies one workflow lifetime.
type Submission struct {
	ID           uint64             `gorm:"primarykey" json:"id"`
	Username     string             `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	SessionKey   string             `gorm:"type:varchar(64);not null" json:"session_key"`
	AssignmentID string             `gorm:"type:varchar(255);not null" json:"assignment_id"`
	Active       bool               `gorm:"not null;default:false" json:"active"`
	Content      string             `gorm:"type:text" json:"content"`
	Attachments  Attachments        `gorm:"type:text" json:"attachments"`
	MessageID    int                `json:"message_id"`
	ChannelID    int64              `json:"channel_id"`
	ReplyTo      int                `json:"reply_to"`
	Detail       AssignmentSnapshot `gorm:"type:text" json:"detail"`
	ReplyMarkup  Keyboard           `gorm:"type:text" json:"reply_markup"`
	Version      int64              `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// HasPayload reports whether there is anything to finalize.
func (s *Submission) HasPayload() bool {
	return s.Content != "" || len(s.Attachments) > 0
}

// AppendContent adds a chunk of text on its own line.
func (s *Submission) AppendContent(text string) {
	if s.Content == "" {
		s.Content = text
		return
	}
	s.Content += "\n" + text
}
