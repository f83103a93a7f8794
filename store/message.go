package store

import (
	"time"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"

	"github.com/civitas-labs/dispatch-api/schema"
)

// AppendMessage appends one entry to a request's message log and returns
// it with its assigned sequence number. The parent request row is locked
// for the duration of the transaction, which serializes appends to the
// same request while leaving appends to other requests free to proceed.
// Messages may be appended in any request state, including resolved.
func (s *DispatchStore) AppendMessage(requestID uint64, sender, message string) (*schema.ChatMessage, error) {
	tx := s.ormDB.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var req schema.HelpRequest
	if err := tx.Set("gorm:query_option", "FOR UPDATE").
		Select("id").Where("id = ?", requestID).First(&req).Error; err != nil {
		tx.Rollback()
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	var next struct {
		Next uint64
	}
	if err := tx.Raw(
		`SELECT COALESCE(MAX(sequence) + 1, 0) AS next FROM chat_messages WHERE request_id = ?`,
		requestID,
	).Scan(&next).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	msg := schema.ChatMessage{
		RequestID: requestID,
		Sequence:  next.Next,
		Sender:    sender,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := tx.Create(&msg).Error; err != nil {
		tx.Rollback()
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &msg, nil
}

// ListMessages returns the log of a request in ascending sequence order.
func (s *DispatchStore) ListMessages(requestID uint64) ([]schema.ChatMessage, error) {
	if _, err := s.GetRequest(requestID); err != nil {
		return nil, err
	}

	msgs := []schema.ChatMessage{}
	if err := s.ormDB.Where("request_id = ?", requestID).Order("sequence asc").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
