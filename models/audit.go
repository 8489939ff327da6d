package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEvent records one admin action against the widget configuration.
type AuditEvent struct {
	ID           string    `bson:"_id,omitempty"`
	Timestamp    time.Time `bson:"timestamp"`
	UserID       string    `bson:"user_id"`
	Action       string    `bson:"action"`   // READ, UPDATE, CHECK, PROVISION
	Resource     string    `bson:"resource"` // settings, status, account
	IPAddress    string    `bson:"ip_address"`
	UserAgent    string    `bson:"user_agent"`
	RequestID    string    `bson:"request_id"`
	Success      bool      `bson:"success"`
	ErrorMessage string    `bson:"error_message,omitempty"`
	PreviousHash string    `bson:"previous_hash"`
	CurrentHash  string    `bson:"current_hash"`
}

// ComputeHash hashes the event together with its predecessor's hash so the
// log forms a tamper-evident chain.
func (e *AuditEvent) ComputeHash() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%t|%s",
		e.Timestamp.Format(time.RFC3339Nano),
		e.UserID,
		e.Action,
		e.Resource,
		e.Success,
		e.PreviousHash,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// AuditLogger appends events to an insert-only Mongo collection.
type AuditLogger struct {
	col      *mongo.Collection
	mu       sync.Mutex
	lastHash string
}

func NewAuditLogger(db *mongo.Database) *AuditLogger {
	col := db.Collection("audit_logs")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "resource", Value: 1}}},
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
	}
	col.Indexes().CreateMany(context.Background(), indexes)

	return &AuditLogger{col: col}
}

// Log appends one event, chaining it to the previous one.
func (al *AuditLogger) Log(event *AuditEvent) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	event.PreviousHash = al.lastHash
	event.Timestamp = time.Now().UTC()
	event.ID = fmt.Sprintf("%d_%s", time.Now().UnixNano(), event.Resource)
	event.CurrentHash = event.ComputeHash()

	if _, err := al.col.InsertOne(context.Background(), event); err != nil {
		log.Printf("failed to log audit event: %v", err)
		return err
	}

	al.lastHash = event.CurrentHash
	return nil
}

// LogAsync logs without blocking the response.
func (al *AuditLogger) LogAsync(event *AuditEvent) {
	go func() {
		if err := al.Log(event); err != nil {
			log.Printf("async audit logging failed: %v", err)
		}
	}()
}

// VerifyChain walks the full log and checks every hash link.
func (al *AuditLogger) VerifyChain() (bool, error) {
	ctx := context.Background()
	cursor, err := al.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return false, err
	}
	defer cursor.Close(ctx)

	var previousHash string
	count := 0

	for cursor.Next(ctx) {
		var event AuditEvent
		if err := cursor.Decode(&event); err != nil {
			return false, err
		}

		count++
		if count > 1 && event.PreviousHash != previousHash {
			return false, nil
		}
		if event.CurrentHash != event.ComputeHash() {
			return false, nil
		}
		previousHash = event.CurrentHash
	}

	return true, nil
}

// QueryAuditLogs returns a page of events, newest first.
func (al *AuditLogger) QueryAuditLogs(filter bson.M, page, pageSize int) ([]AuditEvent, int64, error) {
	ctx := context.Background()

	total, err := al.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := (page - 1) * pageSize
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(pageSize))

	cursor, err := al.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var events []AuditEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
