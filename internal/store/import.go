package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/formpilot/engine/internal/session"
)

// sessionSchema validates session documents exported by the extension
// before they are persisted
const sessionSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "start_url", "status", "actions"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"start_url": {"type": "string", "minLength": 1},
		"platform": {"type": "string"},
		"status": {"enum": ["recording", "completed", "failed", "paused"]},
		"start_time": {"type": "string"},
		"end_time": {"type": "string"},
		"actions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "kind", "target", "timestamp", "page_url"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"kind": {"enum": ["click", "text", "key", "scroll", "navigation"]},
					"target": {"type": "string", "minLength": 1},
					"timestamp": {"type": "string"},
					"page_url": {"type": "string"},
					"payload": {"type": "object"},
					"description": {"type": "string"}
				}
			}
		}
	}
}`

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func compiledSessionSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("session.json", strings.NewReader(sessionSchema)); err != nil {
			compileErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("session.json")
	})
	return compiledSchema, compileErr
}

// Import validates a session document against the embedded schema and
// persists it, preserving action order. Importing an id that already
// exists fails; the stored log is never rewritten.
func (s *Store) Import(ctx context.Context, doc []byte) (*session.Session, error) {
	schema, err := compiledSessionSchema()
	if err != nil {
		return nil, err
	}

	var payload interface{}
	if err := json.Unmarshal(doc, &payload); err != nil {
		return nil, InvalidDocumentError{Reason: "not valid JSON: " + err.Error()}
	}
	if err := schema.Validate(payload); err != nil {
		return nil, InvalidDocumentError{Reason: err.Error()}
	}

	var sess session.Session
	if err := json.Unmarshal(doc, &sess); err != nil {
		return nil, InvalidDocumentError{Reason: err.Error()}
	}
	if sess.Platform == "" {
		sess.Platform = session.ClassifyPlatform(sess.StartURL)
	}

	if _, err := s.getMeta(sess.ID); err == nil {
		return nil, SessionExistsError{SessionID: sess.ID}
	}

	actions := sess.Actions
	if err := s.putMeta(&sess); err != nil {
		return nil, err
	}
	for _, a := range actions {
		if err := s.AppendAction(ctx, sess.ID, a); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Str("session", sess.ID).
		Int("actions", len(actions)).
		Msg("Session imported")
	return &sess, nil
}
