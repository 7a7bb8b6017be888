// Package template compiles "{{...}}" placeholder strings once and
// renders them per job against a session map and a VariableProcessor,
// the same split the teacher's attacker package used for request
// URLs/bodies/headers — here aimed at rollout payload fields instead.
package template

import "strings"

type templatePart struct {
	isLiteral bool
	literal   string
	ref       string
}

// Compiled is a pre-parsed template ready for fast per-job execution.
// Parsing happens once when a batch spec loads; only substitution runs
// per job.
type Compiled struct {
	parts   []templatePart
	hasVars bool
}

// Compile parses a template string into a Compiled template. Call once
// per distinct string (a payload field, a CLI flag default, ...).
func Compile(input string) *Compiled {
	if strings.IndexByte(input, '{') == -1 || !strings.Contains(input, "{{") {
		return &Compiled{parts: []templatePart{{isLiteral: true, literal: input}}}
	}

	ct := &Compiled{hasVars: true}
	remaining := input
	for {
		start := strings.Index(remaining, "{{")
		if start == -1 {
			if remaining != "" {
				ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining})
			}
			break
		}
		if start > 0 {
			ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining[:start]})
		}
		afterOpen := remaining[start+2:]
		end := strings.Index(afterOpen, "}}")
		if end == -1 {
			ct.parts = append(ct.parts, templatePart{isLiteral: true, literal: remaining[start:]})
			break
		}
		ref := strings.TrimSpace(afterOpen[:end])
		ct.parts = append(ct.parts, templatePart{isLiteral: false, ref: ref})
		remaining = afterOpen[end+2:]
	}
	return ct
}

// Execute renders the compiled template using the given session map and
// variable processor. Called once per job.
func (ct *Compiled) Execute(vp *VariableProcessor, session map[string]string) string {
	if !ct.hasVars {
		return ct.parts[0].literal
	}

	literalLen := 0
	for i := range ct.parts {
		if ct.parts[i].isLiteral {
			literalLen += len(ct.parts[i].literal)
		}
	}

	var sb strings.Builder
	sb.Grow(literalLen + 64)

	for i := range ct.parts {
		p := &ct.parts[i]
		if p.isLiteral {
			sb.WriteString(p.literal)
			continue
		}
		if idx := strings.IndexByte(p.ref, '('); idx != -1 && strings.HasSuffix(p.ref, ")") {
			funcName := strings.TrimSpace(p.ref[:idx])
			argStr := p.ref[idx+1 : len(p.ref)-1]
			if f, ok := vp.funcMap[funcName]; ok {
				sb.WriteString(f(parseArgs(argStr)))
			} else {
				sb.WriteString("{{")
				sb.WriteString(p.ref)
				sb.WriteString("}}")
			}
		} else {
			sb.WriteString(vp.getValue(p.ref, session))
		}
	}

	return sb.String()
}
