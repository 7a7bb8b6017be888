// Package debug implements corral's single-job dry-run tracer: submit
// one payload, print the request and every poll, and show the final
// result or failure in the same colored terminal style the teacher's
// debug mode used for single HTTP requests.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/acr9/corral/internal/resultcheck"
	"github.com/acr9/corral/internal/rollout"
	"github.com/acr9/corral/pkg/models"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorMagenta = "\033[35m"
	colorCyan    = "\033[36m"
	colorBold    = "\033[1m"
	colorDim     = "\033[2m"
)

// Options configures one trace run.
type Options struct {
	Payload    map[string]interface{}
	Timeout    time.Duration // 0 means wait forever
	Assertions []models.Assertion
}

// Trace submits payload through client and prints every phase of its
// lifecycle — submission, each poll, and the terminal outcome — to
// stdout. Returns the same error Future.Result would have returned, so
// callers can set a non-zero process exit code.
func Trace(ctx context.Context, client *rollout.Client, opts Options) error {
	fmt.Println()
	fmt.Printf("%s%s🛠️  STARTING TRACE (Dry Run) 🛠️%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("%sSubmitting 1 job, no concurrency...%s\n\n", colorDim, colorReset)

	printSeparator()
	fmt.Printf("%s%s📍 SUBMIT%s\n", colorBold, colorMagenta, colorReset)
	printSeparator()
	fmt.Printf("\n%s[PAYLOAD]%s\n", colorBold, colorReset)
	printFormattedJSON(opts.Payload, "  ")

	start := time.Now()
	fut, err := client.Invoke(ctx, opts.Payload, "", "")
	if err != nil {
		fmt.Printf("\n%s❌ Submit failed:%s %v\n\n", colorRed, colorReset, err)
		return err
	}
	fmt.Printf("\n%s✅ Submitted%s  session=%s%s%s  result_key=%s%s%s\n",
		colorGreen, colorReset,
		colorCyan, fut.SessionID(), colorReset,
		colorCyan, fut.ResultKey(), colorReset)

	printSeparator()
	fmt.Printf("%s%s📍 POLL%s\n", colorBold, colorMagenta, colorReset)
	printSeparator()

	pollNum := 0
	for {
		if opts.Timeout > 0 && time.Since(start) > opts.Timeout {
			fut.Cancel(ctx)
			elapsed := time.Since(start)
			fmt.Printf("\n%s❌ TRACE TIMED OUT%s after %s(%s)%s — session cancellation requested\n\n",
				colorRed, colorReset, colorDim, elapsed.Round(time.Millisecond), colorReset)
			return rollout.ErrTimeout
		}

		if !fut.ReadyToPoll() {
			wait := fut.TimeUntilNextPoll()
			time.Sleep(wait)
			continue
		}

		pollNum++
		done, err := fut.Done(ctx)
		if err != nil {
			fmt.Printf("  %s❌ poll #%d: %v%s\n", colorRed, pollNum, err, colorReset)
			return err
		}
		if !done {
			fmt.Printf("  %s⏳ poll #%d: not ready yet, next poll in %s%s\n",
				colorDim, pollNum, fut.TimeUntilNextPoll().Round(time.Millisecond), colorReset)
			continue
		}
		fmt.Printf("  %s✅ poll #%d: result ready%s\n", colorGreen, pollNum, colorReset)
		break
	}

	result, err := fut.Result(ctx, 0)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("\n%s❌ Fetch failed:%s %v %s(Time: %s)%s\n\n",
			colorRed, colorReset, err, colorDim, elapsed.Round(time.Millisecond), colorReset)
		return err
	}

	printSeparator()
	fmt.Printf("%s%s📍 RESULT%s %s(Time: %s)%s\n", colorBold, colorMagenta, colorReset,
		colorDim, elapsed.Round(time.Millisecond), colorReset)
	printSeparator()
	fmt.Println()
	printFormattedJSON(result, "  ")

	if len(opts.Assertions) > 0 {
		printAssertions(result, opts.Assertions)
	}

	printSeparator()
	fmt.Printf("%s%s✅ TRACE COMPLETED SUCCESSFULLY%s\n\n", colorBold, colorGreen, colorReset)
	return nil
}

func printSeparator() {
	fmt.Printf("%s----------------------------------------------------%s\n", colorDim, colorReset)
}

func printFormattedJSON(v interface{}, prefix string) {
	pretty, err := json.MarshalIndent(v, prefix, "  ")
	if err != nil {
		fmt.Printf("%s%v\n", prefix, v)
		return
	}
	fmt.Printf("%s%s\n", prefix, string(pretty))
}

func printAssertions(result map[string]interface{}, assertions []models.Assertion) {
	fmt.Printf("\n%s[🛡️ ASSERTIONS]%s\n", colorBold, colorReset)

	raw, err := json.Marshal(result)
	if err != nil {
		fmt.Printf("  %s❌ could not marshal result for assertion checking: %v%s\n", colorRed, err, colorReset)
		return
	}

	names := make([]string, 0, len(assertions))
	byName := make(map[string]models.Assertion, len(assertions))
	for i, a := range assertions {
		name := describeAssertion(a)
		key := fmt.Sprintf("%04d:%s", i, name)
		names = append(names, key)
		byName[key] = a
	}
	sort.Strings(names)

	for _, key := range names {
		a := byName[key]
		desc := describeAssertion(a)
		if err := resultcheck.Validate(raw, []models.Assertion{a}); err != nil {
			fmt.Printf("  %s❌ %s: FAILED%s\n", colorRed, desc, colorReset)
			fmt.Printf("     %s└─ %v%s\n", colorDim, err, colorReset)
		} else {
			fmt.Printf("  %s✅ %s:%s Passed\n", colorGreen, desc, colorReset)
		}
	}
}

func describeAssertion(a models.Assertion) string {
	switch a.Type {
	case models.AssertContains:
		return fmt.Sprintf("Contains %q", truncate(a.Value, 40))
	case models.AssertRegex:
		return fmt.Sprintf("Regex %q", truncate(a.Value, 40))
	case models.AssertJSONPath:
		if a.Value != "" {
			return fmt.Sprintf("JSON Path %q = %q", a.Path, truncate(a.Value, 30))
		}
		return fmt.Sprintf("JSON Path %q exists", a.Path)
	default:
		return string(a.Type)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
