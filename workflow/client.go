package workflow

import "github.com/atlasrun/orchestrator/worker"

// defaultClient builds a real worker.Client for a resolved endpoint, with
// the package's default call timeout and HTTP client.
func defaultClient(endpoint string) ToolCaller {
	return worker.New(endpoint, worker.Options{CallTimeout: CallTimeout})
}
