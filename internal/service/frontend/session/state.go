package session

import "github.com/alger-org/alger/internal/cmn/config"

// State carries the in-process execution admission settings. It is built once
// by the process entry point and read by the admission gate on every execute
// request; nothing mutates it after startup.
type State struct {
	MaxConcurrentExecutions int
	ExecutionsHalted        bool
	MaintenanceMode         bool
}

// StateFromConfig projects the configured execution limits into a State.
func StateFromConfig(cfg *config.Config) *State {
	return &State{
		MaxConcurrentExecutions: cfg.Executions.MaxConcurrent,
		ExecutionsHalted:        cfg.Executions.Halted,
		MaintenanceMode:         cfg.Executions.Maintenance,
	}
}
