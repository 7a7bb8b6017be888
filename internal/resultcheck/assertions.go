// Package resultcheck runs optional post-fetch assertions against a
// rollout result's JSON before it's allowed to surface as a successful
// BatchItem, carried over from the teacher's HTTP response validator.
package resultcheck

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/acr9/corral/pkg/models"
)

// AssertionError describes one failed check, with enough context to
// explain what was expected.
type AssertionError struct {
	Type     models.AssertionType
	Expected string
	Actual   string
	Path     string
	Message  string
}

func (e *AssertionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Type {
	case models.AssertContains:
		return fmt.Sprintf("assertion failed: result does not contain %q", e.Expected)
	case models.AssertRegex:
		return fmt.Sprintf("assertion failed: result does not match regex %q", e.Expected)
	case models.AssertJSONPath:
		if e.Expected != "" {
			return fmt.Sprintf("assertion failed: json path %q expected %q, got %q", e.Path, e.Expected, e.Actual)
		}
		return fmt.Sprintf("assertion failed: json path %q not found or empty", e.Path)
	default:
		return fmt.Sprintf("assertion failed: %s", e.Expected)
	}
}

// CompileAssertions pre-compiles regex patterns once, at batch-spec load
// time rather than per result.
func CompileAssertions(assertions []models.Assertion) error {
	for i := range assertions {
		if assertions[i].Type == models.AssertRegex {
			compiled, err := regexp.Compile(assertions[i].Value)
			if err != nil {
				return fmt.Errorf("resultcheck: invalid regex %q: %w", assertions[i].Value, err)
			}
			assertions[i].Regex = compiled
		}
	}
	return nil
}

// Validate runs every assertion against a fetched result's raw JSON
// bytes, fail-fast on the first failure.
func Validate(body []byte, assertions []models.Assertion) error {
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case models.AssertContains:
			err = validateContains(body, assertion)
		case models.AssertRegex:
			err = validateRegex(body, assertion)
		case models.AssertJSONPath:
			err = validateJSONPath(body, assertion)
		default:
			err = validateContains(body, assertion)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func validateContains(body []byte, assertion models.Assertion) error {
	if !bytes.Contains(body, []byte(assertion.Value)) {
		return &AssertionError{Type: models.AssertContains, Expected: assertion.Value, Actual: truncate(body, 100), Message: assertion.Message}
	}
	return nil
}

func validateRegex(body []byte, assertion models.Assertion) error {
	re := assertion.Regex
	if re == nil {
		compiled, err := regexp.Compile(assertion.Value)
		if err != nil {
			return &AssertionError{Type: models.AssertRegex, Expected: assertion.Value, Message: fmt.Sprintf("invalid regex: %v", err)}
		}
		re = compiled
	}
	if !re.Match(body) {
		return &AssertionError{Type: models.AssertRegex, Expected: assertion.Value, Actual: truncate(body, 100), Message: assertion.Message}
	}
	return nil
}

func validateJSONPath(body []byte, assertion models.Assertion) error {
	path := assertion.Path
	if path == "" {
		path = assertion.Value
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return &AssertionError{Type: models.AssertJSONPath, Path: path, Expected: assertion.Value, Message: assertion.Message}
	}

	if assertion.Value != "" && assertion.Path != "" {
		expected := strings.TrimSpace(assertion.Value)
		actual := strings.TrimSpace(result.String())
		if actual != expected {
			return &AssertionError{Type: models.AssertJSONPath, Path: path, Expected: expected, Actual: actual, Message: assertion.Message}
		}
	}

	return nil
}

func truncate(body []byte, maxLen int) string {
	if len(body) <= maxLen {
		return string(body)
	}
	return string(body[:maxLen]) + "..."
}
