package walltime

import "fmt"

// maxNameLength (1024 - 100) leaves headroom under common metadata size
// limits once the benchmark name is embedded in a larger JSON payload
// elsewhere in the pipeline.
const maxNameLength = 1024 - 100

// GenerateNameAndURI truncates name to maxNameLength characters first and
// builds the URI from the truncated form, so the URI is always well-bounded
// too: "exec_harness::<at most maxNameLength chars>".
func GenerateNameAndURI(name string) (truncatedName, uri string, truncated bool) {
	if len(name) <= maxNameLength {
		return name, fmt.Sprintf("exec_harness::%s", name), false
	}
	truncatedName = name[:maxNameLength]
	return truncatedName, fmt.Sprintf("exec_harness::%s", truncatedName), true
}
