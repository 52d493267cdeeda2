package domain

import "time"

// ConversationTurn is one question/answer exchange in a session.
type ConversationTurn struct {
	Index     int         `json:"index"`
	Question  string      `json:"question"`
	Answer    string      `json:"answer"`
	Entities  []EntityRef `json:"entities,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConversationSession is the bounded, tenant-scoped turn history of a session.
// Turns are totally ordered by Index; a session never mixes tenants.
type ConversationSession struct {
	SessionID string             `json:"session_id"`
	TenantID  string             `json:"tenant_id"`
	Turns     []ConversationTurn `json:"turns"`
}
