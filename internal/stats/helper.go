package stats

import "regexp"

var (
	rePortPair   = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+->\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+`)
	reSinglePort = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+`)
)

// sanitizeError strips ephemeral connection details from an error
// string so that e.g. every "dial tcp 127.0.0.1:54321: refused" job
// groups under the same error kind.
func sanitizeError(err string) string {
	err = rePortPair.ReplaceAllString(err, "[CONN_TUPLE]")
	err = reSinglePort.ReplaceAllString(err, "[IP]:[PORT]")
	return err
}
