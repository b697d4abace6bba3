package common

const (
	ComponentReadDetect = "read-detect"
	ComponentReorder    = "reorder"
	ComponentFetcher    = "fetcher"
	ComponentRPC        = "rpc"
	ComponentBench      = "bench"
	ComponentMetrics    = "metrics"
	ComponentCLI        = "cli"
)

var AllComponents = map[string]struct{}{
	ComponentReadDetect: {},
	ComponentReorder:    {},
	ComponentFetcher:    {},
	ComponentRPC:        {},
	ComponentBench:      {},
	ComponentMetrics:    {},
	ComponentCLI:        {},
}
