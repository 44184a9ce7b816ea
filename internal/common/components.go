package common

const (
	ComponentProcessor   = "processor"
	ComponentBlockQueue  = "block-queue"
	ComponentStateKeeper = "state-keeper"
	ComponentExecutor    = "executor"
	ComponentEventSource = "event-source"
	ComponentRunner      = "runner"
	ComponentNotifier    = "notifier"
	ComponentMaintenance = "maintenance"
	ComponentAPI         = "api"
	ComponentQuery       = "query"
)

var AllComponents = map[string]struct{}{
	ComponentProcessor:   {},
	ComponentBlockQueue:  {},
	ComponentStateKeeper: {},
	ComponentExecutor:    {},
	ComponentEventSource: {},
	ComponentRunner:      {},
	ComponentNotifier:    {},
	ComponentMaintenance: {},
	ComponentAPI:         {},
	ComponentQuery:       {},
}
