package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zatekoja/dentalprotocols/backend/internal/domain/entities"
)

// ErrEmptyProtocol is returned when a generated protocol lacks its mandatory content.
var ErrEmptyProtocol = errors.New("generated protocol is empty")

// ErrMalformedProtocol is returned when a generated protocol is not decodable JSON.
var ErrMalformedProtocol = errors.New("generated protocol is malformed")

// ParseResinProtocol decodes and checks a generated stratification protocol.
func ParseResinProtocol(raw []byte) (*entities.ResinProtocol, error) {
	var p entities.ResinProtocol
	if err := decodeCompletion(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Layers) == 0 {
		return nil, fmt.Errorf("%w: no stratification layers", ErrEmptyProtocol)
	}
	if len(p.Checklist) == 0 {
		return nil, fmt.Errorf("%w: empty checklist", ErrEmptyProtocol)
	}
	for i := range p.Layers {
		if p.Layers[i].Order == 0 {
			p.Layers[i].Order = i + 1
		}
	}
	p.Confidence = entities.ParseConfidence(string(p.Confidence))
	p.Alerts = nonNil(p.Alerts)
	p.Warnings = nonNil(p.Warnings)
	return &p, nil
}

// ParseCementationProtocol decodes and checks a generated cementation protocol.
func ParseCementationProtocol(raw []byte) (*entities.CementationProtocol, error) {
	var p entities.CementationProtocol
	if err := decodeCompletion(raw, &p); err != nil {
		return nil, err
	}
	if len(p.Checklist) == 0 {
		return nil, fmt.Errorf("%w: empty checklist", ErrEmptyProtocol)
	}
	if len(p.CeramicTreatment) == 0 {
		return nil, fmt.Errorf("%w: no ceramic treatment steps", ErrEmptyProtocol)
	}
	if strings.TrimSpace(p.Cementation.CementType) == "" {
		return nil, fmt.Errorf("%w: missing cementation spec", ErrEmptyProtocol)
	}
	for _, steps := range [][]entities.CementationStep{p.Preparation, p.CeramicTreatment, p.ToothTreatment, p.Finishing} {
		for i := range steps {
			if steps[i].Order == 0 {
				steps[i].Order = i + 1
			}
		}
	}
	p.Confidence = entities.ParseConfidence(string(p.Confidence))
	p.Alerts = nonNil(p.Alerts)
	p.Warnings = nonNil(p.Warnings)
	return &p, nil
}

// decodeCompletion tolerates a markdown fence around the JSON object.
func decodeCompletion(raw []byte, dst interface{}) error {
	body := bytes.TrimSpace(raw)
	if bytes.HasPrefix(body, []byte("```")) {
		body = bytes.TrimPrefix(body, []byte("```json"))
		body = bytes.TrimPrefix(body, []byte("```"))
		body = bytes.TrimSuffix(bytes.TrimSpace(body), []byte("```"))
		body = bytes.TrimSpace(body)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: no content", ErrEmptyProtocol)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedProtocol, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
