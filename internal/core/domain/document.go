package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusPending  DocumentStatus = "pending"
	StatusIndexing DocumentStatus = "indexing"
	StatusReady    DocumentStatus = "ready"
	StatusFailed   DocumentStatus = "failed"
)

type SourceType string

const (
	SourceTypeText       SourceType = "text"
	SourceTypeTranscript SourceType = "transcript"
)

// Document is a normalized content unit produced by ingestion. A document is
// immutable once chunked; a changed ContentHash supersedes it and triggers
// rechunking as a delete-old/insert-new pass.
type Document struct {
	ID          string         `json:"id"`
	SourceID    string         `json:"source_id"`
	WorkspaceID string         `json:"workspace_id"`
	Title       string         `json:"title"`
	Language    string         `json:"language,omitempty"`
	SourceType  SourceType     `json:"source_type"`
	ContentHash string         `json:"content_hash"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// IngestionEvent is the queue payload handed from ingestion to the indexing
// worker. The content hash lets a consumer drop events for documents that
// were superseded before the event was delivered.
type IngestionEvent struct {
	DocumentID  string `json:"document_id"`
	WorkspaceID string `json:"workspace_id"`
	ContentHash string `json:"content_hash,omitempty"`
}

// Tag keys carried on chunks. workspace and sourceType are always present.
const (
	TagWorkspace       = "workspace"
	TagSourceType      = "sourceType"
	TagConfidentiality = "confidentiality"
	TagAgentHint       = "agentHint"
	TagSpeaker         = "speaker"
	TagTimecode        = "timecode"
)

// Chunk is the atomic retrievable unit. ID is content-derived so that
// re-ingesting identical text never duplicates chunks.
type Chunk struct {
	ID           string            `json:"id"`
	DocumentID   string            `json:"document_id"`
	WorkspaceID  string            `json:"workspace_id"`
	Text         string            `json:"text"`
	Position     int               `json:"position"`
	StartOffset  int               `json:"start_offset,omitempty"`
	EndOffset    int               `json:"end_offset,omitempty"`
	Tags         map[string]string `json:"tags"`
	TokenCount   int               `json:"token_count"`
	IndexVersion int64             `json:"index_version"`
	TTLExpiresAt *time.Time        `json:"ttl_expires_at,omitempty"`
}

// ChunkID derives the stable chunk identifier from the identity triple.
func ChunkID(documentID string, position int, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", documentID, position, text)))
	return hex.EncodeToString(h[:16])
}

// ContentHash fingerprints normalized document content for change detection.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

func (c Chunk) Expired(now time.Time) bool {
	return c.TTLExpiresAt != nil && !c.TTLExpiresAt.After(now)
}
