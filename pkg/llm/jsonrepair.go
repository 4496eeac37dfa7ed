package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrNoJSONObject = errors.New("response contains no JSON object")

type ParseStage string

const (
	StageDirect    ParseStage = "direct"
	StageExtracted ParseStage = "extracted"
	StageRepaired  ParseStage = "repaired"
)

var (
	fencePattern         = regexp.MustCompile("^```[A-Za-z0-9_-]*\\s*\\n?|\\n?\\s*```$")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	whitespacePattern    = regexp.MustCompile(`[\r\n\t]+`)
)

// ParseResult is either an Object (Err nil) or a failure reason.
type ParseResult struct {
	Object map[string]any
	Stage  ParseStage
	Err    error
}

func (r ParseResult) OK() bool {
	return r.Err == nil
}

// ParseJSONObject runs the repair cascade over raw model output and stops at the first stage that decodes.
func ParseJSONObject(raw string) ParseResult {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(strings.TrimSpace(raw), ""))

	if obj, err := decodeObject(cleaned); err == nil {
		return ParseResult{Object: obj, Stage: StageDirect}
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return ParseResult{Err: ErrNoJSONObject}
	}
	candidate := cleaned[start : end+1]

	if obj, err := decodeObject(candidate); err == nil {
		return ParseResult{Object: obj, Stage: StageExtracted}
	}

	fixed := trailingCommaPattern.ReplaceAllString(candidate, "$1")
	fixed = whitespacePattern.ReplaceAllString(fixed, " ")
	obj, err := decodeObject(fixed)
	if err != nil {
		return ParseResult{Err: fmt.Errorf("invalid JSON after repair: %w", err)}
	}
	return ParseResult{Object: obj, Stage: StageRepaired}
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNoJSONObject
	}
	return obj, nil
}
