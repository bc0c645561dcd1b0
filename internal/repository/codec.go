package repository

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion версия формата сохраняемых блоков
const SchemaVersion = 1

// BlobKind тип содержимого блока
type BlobKind string

const (
	KindTrajectories BlobKind = "trajectories"
	KindGrid         BlobKind = "grid"
	KindSolution     BlobKind = "solution"
)

type envelope struct {
	Version int             `json:"version"`
	Kind    BlobKind        `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode упаковывает значение в версионированный конверт
func Encode(kind BlobKind, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	blob, err := json.Marshal(envelope{Version: SchemaVersion, Kind: kind, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", kind, err)
	}
	return blob, nil
}

// Decode распаковывает конверт; несовпадение версии или типа является ошибкой
func Decode(blob []byte, kind BlobKind, v interface{}) error {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Version != SchemaVersion {
		return fmt.Errorf("schema version %d, expected %d", env.Version, SchemaVersion)
	}
	if env.Kind != kind {
		return fmt.Errorf("blob kind %q, expected %q", env.Kind, kind)
	}
	if len(env.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", kind, err)
	}
	return nil
}
