package protocol

import "encoding/json"

// truncateResults trims a places lookup's "results" array down to
// maxResults entries, re-encoding with 4-space indentation to match the
// original server's json.dumps(..., indent=4) texture. If body isn't a
// JSON object, or carries no "results" array, it is returned unchanged:
// best effort only, since a malformed upstream payload must never
// prevent a reply from reaching the client.
func truncateResults(body []byte, maxResults int) []byte {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return body
	}

	results, ok := payload["results"].([]interface{})
	if !ok {
		return body
	}
	if len(results) > maxResults {
		payload["results"] = results[:maxResults]
	}

	out, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return body
	}
	return out
}
