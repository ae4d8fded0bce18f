// internal/agent/classifier/extract.go
package classifier

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Payload is the structured result of a classification call.
type Payload struct {
	Intention     string                            `json:"intention"`
	Entities      []string                          `json:"entities"`
	Action        string                            `json:"action"`
	ExtractedData map[string]map[string]interface{} `json:"extracted_data"`
}

// DefaultPayload is the neutral result used whenever the model output
// cannot be decoded.
func DefaultPayload() *Payload {
	return &Payload{
		Intention:     "otro",
		Entities:      []string{"otro"},
		Action:        "otro",
		ExtractedData: map[string]map[string]interface{}{},
	}
}

// payloadSchema checks the shape of a decoded candidate before it is
// accepted: entities must be strings and extracted_data must nest
// entity -> field -> value.
var payloadSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"intention": {"type": "string"},
		"entities": {"type": "array", "items": {"type": "string"}},
		"action": {"type": "string"},
		"extracted_data": {
			"type": "object",
			"additionalProperties": {"type": "object"}
		}
	},
	"required": ["intention", "entities", "action"]
}`)

func validPayloadShape(raw []byte) bool {
	result, err := gojsonschema.Validate(payloadSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return false
	}
	return result.Valid()
}

// balancedSlice returns the first balanced open..close region of text, or
// "" when none closes. Quoted delimiters are not special-cased; model output
// that trips this up falls through to the next extractor.
func balancedSlice(text string, opening, closing byte) string {
	start := strings.IndexByte(text, opening)
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case opening:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func decodePayload(raw []byte) *Payload {
	if !validPayloadShape(raw) {
		return nil
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	if p.ExtractedData == nil {
		p.ExtractedData = map[string]map[string]interface{}{}
	}
	return &p
}

// ExtractPayload decodes model output into a Payload through an ordered
// pipeline: strict decode, first balanced object, first object inside the
// first balanced list, then the hard default. It never fails.
func ExtractPayload(text string) *Payload {
	trimmed := strings.TrimSpace(text)

	if p := decodePayload([]byte(trimmed)); p != nil {
		return p
	}

	if obj := balancedSlice(trimmed, '{', '}'); obj != "" {
		if p := decodePayload([]byte(obj)); p != nil {
			return p
		}
	}

	if list := balancedSlice(trimmed, '[', ']'); list != "" {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(list), &items); err == nil {
			for _, item := range items {
				if p := decodePayload(item); p != nil {
					return p
				}
			}
		}
	}

	return DefaultPayload()
}
