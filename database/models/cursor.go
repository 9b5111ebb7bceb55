package models

// Cursor is the last block a monitor has fully processed. It is written in
// the same transaction as the block's entities so a restart resumes exactly
// after the last committed block.
type Cursor struct {
	Name   string `json:"name" bson:"name"`
	Height int64  `json:"height" bson:"height"`
}
