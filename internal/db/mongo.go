package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// MongoClient lazily connects to MongoDB using MONGODB_URI/MONGODB_DB.
type MongoClient struct {
	mu     sync.Mutex
	client *mongo.Client
}

func NewMongoClient() *MongoClient {
	return &MongoClient{}
}

func (m *MongoClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.client.Disconnect(ctx)
		m.client = nil
	}
}

func (m *MongoClient) database(ctx context.Context) (*mongo.Database, error) {
	dbName := os.Getenv("MONGODB_DB")
	if dbName == "" {
		return nil, fmt.Errorf("mongodb: MONGODB_DB must be set")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		uri := os.Getenv("MONGODB_URI")
		if uri == "" {
			return nil, fmt.Errorf("mongodb: MONGODB_URI must be set")
		}
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
		if err != nil {
			return nil, fmt.Errorf("mongodb: %w", err)
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			client.Disconnect(connectCtx)
			return nil, fmt.Errorf("mongodb: connection failed: %w", err)
		}
		m.client = client
	}
	return m.client.Database(dbName), nil
}

// RegisterMongoTools adds the MongoDB tools. Insert/update/delete require
// user approval.
func RegisterMongoTools(reg *llm.ToolRegistry, client *MongoClient) {
	reg.Register(&mongoListCollectionsTool{client: client})
	reg.Register(&mongoFindTool{client: client})
	reg.RegisterInterrupting(&mongoInsertTool{client: client}, func(args map[string]any) string {
		return fmt.Sprintf("Insert into mongodb collection %v:\n  %v", args["collection"], args["document"])
	})
	reg.RegisterInterrupting(&mongoUpdateTool{client: client}, func(args map[string]any) string {
		return fmt.Sprintf("Update mongodb collection %v where %v:\n  %v", args["collection"], args["filter"], args["update"])
	})
	reg.RegisterInterrupting(&mongoDeleteTool{client: client}, func(args map[string]any) string {
		return fmt.Sprintf("Delete from mongodb collection %v where %v", args["collection"], args["filter"])
	})
}

type mongoListCollectionsTool struct{ client *MongoClient }

func (t *mongoListCollectionsTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "mongodb_list_collections",
		Description: "List all collections in the MongoDB database.",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}

func (t *mongoListCollectionsTool) Preview(json.RawMessage) string { return "" }

func (t *mongoListCollectionsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	db, err := t.client.database(ctx)
	if err != nil {
		return "", err
	}
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	if len(names) == 0 {
		return "No collections found.", nil
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("Collections:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s\n", name)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type mongoFindTool struct{ client *MongoClient }

type mongoFindArgs struct {
	Collection string `json:"collection"`
	Query      string `json:"query,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func (t *mongoFindTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "mongodb_find",
		Description: "Find documents in a MongoDB collection.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": map[string]any{"type": "string", "description": "The collection to search"},
				"query": map[string]any{
					"type":        "string",
					"description": `JSON query filter, e.g. '{"name": "John"}' (default: {})`,
				},
				"limit": map[string]any{"type": "integer", "description": "Maximum documents to return (default: 10)"},
			},
			"required":             []string{"collection"},
			"additionalProperties": false,
		},
	}
}

func (t *mongoFindTool) Preview(args json.RawMessage) string {
	var a mongoFindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.Query == "" || a.Query == "{}" {
		return a.Collection
	}
	return fmt.Sprintf("%s: %s", a.Collection, truncateStatement(a.Query))
}

func (t *mongoFindTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a mongoFindArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Collection == "" {
		return "", fmt.Errorf("collection is required")
	}
	filter, err := parseBSONDoc(a.Query)
	if err != nil {
		return "", fmt.Errorf("parsing query JSON: %w", err)
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}

	db, err := t.client.database(ctx)
	if err != nil {
		return "", err
	}
	cursor, err := db.Collection(a.Collection).Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	if len(docs) == 0 {
		return "No documents found.", nil
	}
	payload, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

type mongoInsertTool struct{ client *MongoClient }

type mongoInsertArgs struct {
	Collection string `json:"collection"`
	Document   string `json:"document"`
}

func (t *mongoInsertTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "mongodb_insert_one",
		Description: "Insert a single document into a MongoDB collection.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": map[string]any{"type": "string", "description": "The collection name"},
				"document":   map[string]any{"type": "string", "description": "JSON document to insert"},
			},
			"required":             []string{"collection", "document"},
			"additionalProperties": false,
		},
	}
}

func (t *mongoInsertTool) Preview(args json.RawMessage) string {
	var a mongoInsertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Collection
}

func (t *mongoInsertTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a mongoInsertArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	doc, err := parseBSONDoc(a.Document)
	if err != nil {
		return "", fmt.Errorf("parsing document JSON: %w", err)
	}
	db, err := t.client.database(ctx)
	if err != nil {
		return "", err
	}
	result, err := db.Collection(a.Collection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	return fmt.Sprintf("Document inserted successfully. ID: %v", result.InsertedID), nil
}

type mongoUpdateTool struct{ client *MongoClient }

type mongoUpdateArgs struct {
	Collection string `json:"collection"`
	Filter     string `json:"filter"`
	Update     string `json:"update"`
}

func (t *mongoUpdateTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "mongodb_update_many",
		Description: `Update documents in a MongoDB collection. The update is a JSON update document, e.g. '{"$set": {"status": "active"}}'.`,
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": map[string]any{"type": "string", "description": "The collection name"},
				"filter":     map[string]any{"type": "string", "description": "JSON filter matching documents to update"},
				"update":     map[string]any{"type": "string", "description": "JSON update operations"},
			},
			"required":             []string{"collection", "filter", "update"},
			"additionalProperties": false,
		},
	}
}

func (t *mongoUpdateTool) Preview(args json.RawMessage) string {
	var a mongoUpdateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Collection
}

func (t *mongoUpdateTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a mongoUpdateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	filter, err := parseBSONDoc(a.Filter)
	if err != nil {
		return "", fmt.Errorf("parsing filter JSON: %w", err)
	}
	update, err := parseBSONDoc(a.Update)
	if err != nil {
		return "", fmt.Errorf("parsing update JSON: %w", err)
	}
	db, err := t.client.database(ctx)
	if err != nil {
		return "", err
	}
	result, err := db.Collection(a.Collection).UpdateMany(ctx, filter, update)
	if err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	return fmt.Sprintf("Update successful. Matched: %d, Modified: %d", result.MatchedCount, result.ModifiedCount), nil
}

type mongoDeleteTool struct{ client *MongoClient }

type mongoDeleteArgs struct {
	Collection string `json:"collection"`
	Filter     string `json:"filter"`
}

func (t *mongoDeleteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "mongodb_delete_many",
		Description: "Delete documents from a MongoDB collection.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"collection": map[string]any{"type": "string", "description": "The collection name"},
				"filter":     map[string]any{"type": "string", "description": "JSON filter matching documents to delete"},
			},
			"required":             []string{"collection", "filter"},
			"additionalProperties": false,
		},
	}
}

func (t *mongoDeleteTool) Preview(args json.RawMessage) string {
	var a mongoDeleteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Collection
}

func (t *mongoDeleteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a mongoDeleteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	filter, err := parseBSONDoc(a.Filter)
	if err != nil {
		return "", fmt.Errorf("parsing filter JSON: %w", err)
	}
	if len(filter) == 0 {
		return "", fmt.Errorf("refusing to delete with an empty filter")
	}
	db, err := t.client.database(ctx)
	if err != nil {
		return "", err
	}
	result, err := db.Collection(a.Collection).DeleteMany(ctx, filter)
	if err != nil {
		return "", fmt.Errorf("mongodb: %w", err)
	}
	return fmt.Sprintf("Delete successful. Deleted count: %d", result.DeletedCount), nil
}

// parseBSONDoc parses a JSON string into a bson document. Empty input
// yields an empty document.
func parseBSONDoc(s string) (bson.M, error) {
	if strings.TrimSpace(s) == "" {
		return bson.M{}, nil
	}
	var doc bson.M
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
