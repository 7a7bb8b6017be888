package payload

import (
	"strconv"

	"github.com/acr9/corral/internal/template"
)

// Spec is a batch's payload field map: each value may contain
// "{{...}}" placeholders resolved per job against the job index and,
// when a Feeder is attached, that job's data row (exposed under
// "data.<column>").
type Spec map[string]string

// Builder compiles a Spec once and renders it into a concrete payload
// per job.
type Builder struct {
	compiled map[string]*template.Compiled
	feeder   Feeder
	vp       *template.VariableProcessor
}

// NewBuilder compiles spec and binds an optional feeder (nil means
// every job relies only on the built-in generators and the job index).
func NewBuilder(spec Spec, feeder Feeder) *Builder {
	compiled := make(map[string]*template.Compiled, len(spec))
	for field, tmpl := range spec {
		compiled[field] = template.Compile(tmpl)
	}
	return &Builder{compiled: compiled, feeder: feeder, vp: template.NewVariableProcessor()}
}

// Count returns requested when it is positive, even if that exceeds the
// feeder's row count (rows then repeat). Otherwise it returns the
// feeder's row count, or 0 when no feeder is attached.
func (b *Builder) Count(requested int) int {
	if requested > 0 {
		return requested
	}
	if b.feeder != nil {
		return b.feeder.Len()
	}
	return 0
}

// Build renders count payloads in job-index order, ready to hand to
// rollout.NewBatchEngine.
func (b *Builder) Build(count int) []map[string]interface{} {
	payloads := make([]map[string]interface{}, count)
	for i := 0; i < count; i++ {
		session := map[string]string{"index": strconv.Itoa(i)}
		if b.feeder != nil {
			for k, v := range b.feeder.Next() {
				session["data."+k] = v
			}
		}

		job := make(map[string]interface{}, len(b.compiled))
		for field, compiled := range b.compiled {
			job[field] = compiled.Execute(b.vp, session)
		}
		payloads[i] = job
	}
	return payloads
}
