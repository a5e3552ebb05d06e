package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one utterance to classify along with the names the prompt needs.
type Request struct {
	Utterance     string `json:"utterance"`
	AssistantName string `json:"assistantName"`
	CreatorName   string `json:"creatorName"`
}

// UnmarshalJSON also accepts the field names older web clients send:
// "prompt" or "command" for the utterance and "userName" for the creator.
func (r *Request) UnmarshalJSON(b []byte) error {
	var raw struct {
		Utterance     string `json:"utterance"`
		Prompt        string `json:"prompt"`
		Command       string `json:"command"`
		AssistantName string `json:"assistantName"`
		CreatorName   string `json:"creatorName"`
		UserName      string `json:"userName"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Utterance = firstNonBlank(raw.Utterance, raw.Prompt, raw.Command)
	r.AssistantName = raw.AssistantName
	r.CreatorName = firstNonBlank(raw.CreatorName, raw.UserName)
	return nil
}

// Validate reports every missing or blank field at once.
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Utterance) == "" {
		missing = append(missing, "utterance")
	}
	if strings.TrimSpace(r.AssistantName) == "" {
		missing = append(missing, "assistantName")
	}
	if strings.TrimSpace(r.CreatorName) == "" {
		missing = append(missing, "creatorName")
	}
	if len(missing) > 0 {
		return &BadRequestError{Missing: missing}
	}
	return nil
}

// BadRequestError lists the request fields that were absent or blank.
type BadRequestError struct {
	Missing []string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("bad request: missing %s", strings.Join(e.Missing, ", "))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
