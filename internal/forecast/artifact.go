package forecast

import (
	"encoding/json"
	"fmt"
	"os"

	"BulletinTracker/internal/domain"
)

// artifact is the on-disk envelope of a trained model.
type artifact struct {
	SchemaVersion int             `json:"schema_version"`
	ModelID       string          `json:"model_id"`
	Payload       json.RawMessage `json:"payload"`
}

// saveArtifact serializes the model payload under the current feature
// schema version.
func saveArtifact(path, modelID string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode model %s: %w", modelID, err)
	}

	envelope := artifact{
		SchemaVersion: FeatureSchemaVersion,
		ModelID:       modelID,
		Payload:       encoded,
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", modelID, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

// loadArtifact restores a payload, rejecting artifacts produced by another
// model or an incompatible feature layout.
func loadArtifact(path, modelID string, payload any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}

	var envelope artifact
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}

	if envelope.SchemaVersion != FeatureSchemaVersion {
		return fmt.Errorf("artifact %s has feature schema %d, want %d: %w",
			path, envelope.SchemaVersion, FeatureSchemaVersion, domain.ErrValidation)
	}
	if envelope.ModelID != modelID {
		return fmt.Errorf("artifact %s was trained by %s, not %s: %w",
			path, envelope.ModelID, modelID, domain.ErrValidation)
	}

	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode model %s: %w", modelID, err)
	}
	return nil
}
