package orchestrator

// Metrics reports run counts, per-agent performance, and the LLM layer's
// usage counters.
func (e *Engine) Metrics() map[string]any {
	e.mu.Lock()
	runs, succeeded, failed := e.runs, e.succeeded, e.failed
	e.mu.Unlock()

	agentStats := make(map[string]any, len(e.agents))
	for role, agent := range e.agents {
		tasks, avg := agent.Performance()
		agentStats[string(role)] = map[string]any{
			"tasks_completed": tasks,
			"average_quality": avg,
		}
	}

	out := map[string]any{
		"orchestrator": map[string]any{
			"mode":            string(e.cfg.Mode),
			"total_runs":      runs,
			"successful_runs": succeeded,
			"failed_runs":     failed,
			"max_iterations":  e.cfg.MaxIterations,
		},
		"agents": agentStats,
	}
	if e.llm != nil {
		out["llm"] = e.llm.Snapshot()
	}
	return out
}
