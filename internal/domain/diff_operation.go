package domain

import (
	"encoding/json"
	"fmt"
)

// DiffOpKind is the kind of a single edit operation.
type DiffOpKind string

const (
	DiffOpInsert  DiffOpKind = "insert"
	DiffOpDelete  DiffOpKind = "delete"
	DiffOpReplace DiffOpKind = "replace"
)

// DiffOperationsSchemaVersion is written into every stored operation list.
const DiffOperationsSchemaVersion = 1

// DiffOperation is a character-level edit against a base text.
//
//	insert:  Start == End, Text is inserted at Start
//	delete:  [Start, End) is removed, Text is empty
//	replace: [Start, End) is replaced by Text
type DiffOperation struct {
	Kind  DiffOpKind `json:"op"`
	Start int        `json:"start"`
	End   int        `json:"end"`
	Text  string     `json:"text,omitempty"`
}

// Insert builds an insert operation.
func Insert(at int, text string) DiffOperation {
	return DiffOperation{Kind: DiffOpInsert, Start: at, End: at, Text: text}
}

// Delete builds a delete operation.
func Delete(start, end int) DiffOperation {
	return DiffOperation{Kind: DiffOpDelete, Start: start, End: end}
}

// Replace builds a replace operation.
func Replace(start, end int, text string) DiffOperation {
	return DiffOperation{Kind: DiffOpReplace, Start: start, End: end, Text: text}
}

// Shift returns the operation moved by delta characters.
func (op DiffOperation) Shift(delta int) DiffOperation {
	op.Start += delta
	op.End += delta
	return op
}

// Validate checks the operation's shape independent of any base text.
func (op DiffOperation) Validate() error {
	if op.Start < 0 || op.End < op.Start {
		return fmt.Errorf("invalid range [%d, %d)", op.Start, op.End)
	}
	switch op.Kind {
	case DiffOpInsert:
		if op.End != op.Start {
			return fmt.Errorf("insert must have start == end, got [%d, %d)", op.Start, op.End)
		}
		if op.Text == "" {
			return fmt.Errorf("insert at %d has empty text", op.Start)
		}
	case DiffOpDelete:
		if op.End == op.Start {
			return fmt.Errorf("delete at %d has empty range", op.Start)
		}
		if op.Text != "" {
			return fmt.Errorf("delete [%d, %d) carries text", op.Start, op.End)
		}
	case DiffOpReplace:
		if op.End == op.Start {
			return fmt.Errorf("replace at %d has empty range", op.Start)
		}
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	return nil
}

// ShiftOperations returns a copy of ops moved by delta characters.
func ShiftOperations(ops []DiffOperation, delta int) []DiffOperation {
	out := make([]DiffOperation, len(ops))
	for i, op := range ops {
		out[i] = op.Shift(delta)
	}
	return out
}

type diffOperationsEnvelope struct {
	SchemaVersion int             `json:"schema_version"`
	Operations    []DiffOperation `json:"operations"`
}

// EncodeDiffOperations serializes ops into the versioned storage format.
func EncodeDiffOperations(ops []DiffOperation) ([]byte, error) {
	if ops == nil {
		ops = []DiffOperation{}
	}
	return json.Marshal(diffOperationsEnvelope{
		SchemaVersion: DiffOperationsSchemaVersion,
		Operations:    ops,
	})
}

// DecodeDiffOperations parses stored operations and validates each one.
func DecodeDiffOperations(data []byte) ([]DiffOperation, error) {
	var env diffOperationsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode diff operations: %w", err)
	}
	if env.SchemaVersion != DiffOperationsSchemaVersion {
		return nil, fmt.Errorf("unsupported diff operations schema version %d", env.SchemaVersion)
	}
	for i, op := range env.Operations {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	if env.Operations == nil {
		env.Operations = []DiffOperation{}
	}
	return env.Operations, nil
}
