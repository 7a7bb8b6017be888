package template

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lucasjones/reggen"
)

const (
	lettersLower = "abcdefghijklmnopqrstuvwxyz"
	lettersUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits       = "0123456789"
	hexChars     = "0123456789abcdef"
	alphanum     = lettersLower + lettersUpper + digits
)

// VariableProcessor renders "{{var}}" and "{{func(args)}}" placeholders
// found in a rollout payload field against a per-job session map, with
// a built-in set of synthetic-data generators for fields a job doesn't
// pin down explicitly (ids, timestamps, fuzzed strings).
type VariableProcessor struct {
	funcMap map[string]func([]string) string
}

// NewVariableProcessor creates a processor with the built-in functions.
func NewVariableProcessor() *VariableProcessor {
	vp := &VariableProcessor{}
	vp.initFuncMap()
	return vp
}

func (vp *VariableProcessor) initFuncMap() {
	vp.funcMap = map[string]func([]string) string{
		"hmac_sha256": func(args []string) string {
			if len(args) != 2 {
				return "ERROR:hmac_sha256_needs_2_args"
			}
			h := hmac.New(sha256.New, []byte(args[0]))
			h.Write([]byte(args[1]))
			return hex.EncodeToString(h.Sum(nil))
		},
		"base64_encode": func(args []string) string {
			if len(args) != 1 {
				return "ERROR:base64_encode_needs_1_arg"
			}
			return base64.StdEncoding.EncodeToString([]byte(args[0]))
		},
		"md5": func(args []string) string {
			if len(args) != 1 {
				return "ERROR:md5_needs_1_arg"
			}
			hash := md5.Sum([]byte(args[0]))
			return hex.EncodeToString(hash[:])
		},
		"sha256": func(args []string) string {
			if len(args) != 1 {
				return "ERROR:sha256_needs_1_arg"
			}
			hash := sha256.Sum256([]byte(args[0]))
			return hex.EncodeToString(hash[:])
		},
		"time_future": func(args []string) string {
			if len(args) < 1 {
				return "ERROR:time_future_needs_duration"
			}
			dur, err := time.ParseDuration(args[0])
			if err != nil {
				return "ERROR:invalid_duration"
			}
			layout := time.RFC3339
			if len(args) >= 2 {
				layout = args[1]
			}
			return time.Now().Add(dur).Format(layout)
		},
		"time_past": func(args []string) string {
			if len(args) < 1 {
				return "ERROR:time_past_needs_duration"
			}
			dur, err := time.ParseDuration(args[0])
			if err != nil {
				return "ERROR:invalid_duration"
			}
			layout := time.RFC3339
			if len(args) >= 2 {
				layout = args[1]
			}
			return time.Now().Add(-dur).Format(layout)
		},
		"random_choice": func(args []string) string {
			if len(args) == 0 {
				return ""
			}
			return args[rand.IntN(len(args))]
		},
		"random_int_range": func(args []string) string {
			if len(args) != 2 {
				return "ERROR:random_int_range_needs_min_max"
			}
			min, _ := strconv.Atoi(strings.TrimSpace(args[0]))
			max, _ := strconv.Atoi(strings.TrimSpace(args[1]))
			if max <= min {
				return strconv.Itoa(min)
			}
			return strconv.Itoa(rand.IntN(max-min) + min)
		},
		"random_float_range": func(args []string) string {
			if len(args) < 2 {
				return "ERROR:random_float_range_needs_min_max"
			}
			min, _ := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
			max, _ := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			decimals := 2
			if len(args) >= 3 {
				if d, err := strconv.Atoi(strings.TrimSpace(args[2])); err == nil {
					decimals = d
				}
			}
			val := min + rand.Float64()*(max-min)
			return fmt.Sprintf(fmt.Sprintf("%%.%df", decimals), val)
		},
		"random_string": func(args []string) string {
			length := 10
			if len(args) >= 1 {
				if l, err := strconv.Atoi(args[0]); err == nil {
					length = l
				}
			}
			chars := alphanum
			if len(args) >= 2 {
				chars = args[1]
			}
			b := make([]byte, length)
			for i := range b {
				b[i] = chars[rand.IntN(len(chars))]
			}
			return string(b)
		},
		"regex_gen": func(args []string) string {
			if len(args) != 1 {
				return "ERROR:regex_gen_needs_pattern"
			}
			res, err := reggen.Generate(args[0], 10)
			if err != nil {
				return "ERROR:regex_gen_failed"
			}
			return res
		},
	}
}

// Process replaces placeholders in input using the session map and the
// built-in generators, session values taking priority.
func (vp *VariableProcessor) Process(input string, session map[string]string) string {
	if strings.IndexByte(input, '{') == -1 || !strings.Contains(input, "{{") {
		return input
	}

	var sb strings.Builder
	sb.Grow(len(input))
	lastIdx := 0
	inputLen := len(input)

	for i := 0; i < inputLen; {
		start := strings.Index(input[i:], "{{")
		if start == -1 {
			sb.WriteString(input[i:])
			break
		}
		start += i

		end := strings.Index(input[start:], "}}")
		if end == -1 {
			sb.WriteString(input[i:])
			break
		}
		end += start

		sb.WriteString(input[lastIdx:start])
		content := strings.TrimSpace(input[start+2 : end])

		if idx := strings.IndexByte(content, '('); idx != -1 && strings.HasSuffix(content, ")") {
			funcName := strings.TrimSpace(content[:idx])
			argStr := content[idx+1 : len(content)-1]
			args := parseArgs(argStr)
			if f, ok := vp.funcMap[funcName]; ok {
				sb.WriteString(f(args))
			} else {
				sb.WriteString(input[start : end+2])
			}
		} else {
			sb.WriteString(vp.getValue(content, session))
		}

		i = end + 2
		lastIdx = i
	}

	return sb.String()
}

// parseArgs splits a comma-separated argument string, respecting quotes.
func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch r {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				args = append(args, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
			current.WriteRune(r)
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	for i, arg := range args {
		if strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"") && len(arg) >= 2 {
			args[i] = arg[1 : len(arg)-1]
		}
	}

	return args
}

func (vp *VariableProcessor) getValue(name string, session map[string]string) string {
	if val, ok := session[name]; ok {
		return val
	}

	switch name {
	case "uuid":
		return uuid.New().String()
	case "random_int":
		return fmt.Sprintf("%d", rand.IntN(100000))
	case "timestamp":
		return fmt.Sprintf("%d", time.Now().Unix())
	case "timestamp_ms":
		return fmt.Sprintf("%d", time.Now().UnixMilli())
	case "random_email":
		return fmt.Sprintf("user%d@example.com", rand.IntN(1000000))
	case "random_alphanum":
		b := make([]byte, 10)
		for i := range b {
			b[i] = alphanum[rand.IntN(len(alphanum))]
		}
		return string(b)
	case "random_bool":
		if rand.IntN(2) == 0 {
			return "false"
		}
		return "true"
	case "random_float":
		return fmt.Sprintf("%.6f", rand.Float64())
	case "iso8601":
		return time.Now().UTC().Format(time.RFC3339)
	}

	if strings.HasPrefix(name, "random_digits_") {
		length := parsePositiveInt(name[len("random_digits_"):], 10, 20)
		result := make([]byte, length)
		for i := range result {
			result[i] = digits[rand.IntN(10)]
		}
		return string(result)
	}

	if strings.HasPrefix(name, "random_hex_") {
		length := parsePositiveInt(name[len("random_hex_"):], 8, 64)
		result := make([]byte, length)
		for i := range result {
			result[i] = hexChars[rand.IntN(16)]
		}
		return string(result)
	}

	if strings.HasPrefix(name, "random_alphanum_") {
		length := parsePositiveInt(name[len("random_alphanum_"):], 10, 64)
		result := make([]byte, length)
		for i := range result {
			result[i] = alphanum[rand.IntN(len(alphanum))]
		}
		return string(result)
	}

	return "{{" + name + "}}"
}

func parsePositiveInt(s string, defaultVal, maxVal int) int {
	var n int
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
		} else {
			return defaultVal
		}
	}
	if n <= 0 {
		return defaultVal
	}
	if n > maxVal {
		return maxVal
	}
	return n
}
