package handler_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

const evaluationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": [
    "id", "documentId", "userId", "filename",
    "completenessScore", "completenessFeedback",
    "clarityScore", "clarityFeedback",
    "consistencyScore", "consistencyFeedback",
    "verificationScore", "verificationFeedback",
    "overallScore", "overallFeedback", "cached", "createdAt"
  ],
  "properties": {
    "id": {"type": "integer", "minimum": 1},
    "documentId": {"type": "integer", "minimum": 1},
    "userId": {"type": "integer", "minimum": 1},
    "filename": {"type": "string"},
    "completenessScore": {"$ref": "#/definitions/score"},
    "clarityScore": {"$ref": "#/definitions/score"},
    "consistencyScore": {"$ref": "#/definitions/score"},
    "verificationScore": {"$ref": "#/definitions/score"},
    "overallScore": {"$ref": "#/definitions/score"},
    "completenessFeedback": {"type": "string"},
    "clarityFeedback": {"type": "string"},
    "consistencyFeedback": {"type": "string"},
    "verificationFeedback": {"type": "string"},
    "overallFeedback": {"type": "string"},
    "cached": {"type": "boolean"},
    "createdAt": {"type": "string", "format": "date-time"}
  },
  "definitions": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100}
  }
}`

func validateEvaluationContract(t *testing.T, raw json.RawMessage) {
	t.Helper()
	schema, err := jsonschema.CompileString("evaluation_response.json", evaluationResponseSchema)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.NoError(t, schema.Validate(payload))
}
