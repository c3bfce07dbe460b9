package neuron

import "github.com/wisp-agent/wisp/internal/types"

// The standard drive neurons. Weights are fixed per neuron; the
// change-detection knobs come from config so deployments can tune
// sensitivity without touching scoring.

// SocialDebt rises with unpaid social attention and time since contact
func SocialDebt(cfg Config) *DriveNeuron {
	return NewDrive("social_debt", types.SignalSocialDebt, types.PriorityNormal, cfg, func(s types.AgentState) []Input {
		return []Input{
			{Name: "social_debt", Value: s.SocialDebt, Weight: 0.55},
			{Name: "contact_idle", Value: s.ContactIdle, Weight: 0.25},
			{Name: "acquaintance", Value: s.AcquaintancePressure, Weight: 0.20},
		}
	})
}

// ThoughtPressure tracks the backlog of unprocessed internal thoughts
func ThoughtPressure(cfg Config) *DriveNeuron {
	return NewDrive("thought_pressure", types.SignalThoughtPressure, types.PriorityNormal, cfg, func(s types.AgentState) []Input {
		return []Input{
			{Name: "thought_pressure", Value: s.ThoughtPressure, Weight: 0.7},
			{Name: "curiosity", Value: s.Curiosity, Weight: 0.3},
		}
	})
}

// TaskPressure tracks outstanding work scaled by available energy
func TaskPressure(cfg Config) *DriveNeuron {
	return NewDrive("task_pressure", types.SignalTaskPressure, types.PriorityNormal, cfg, func(s types.AgentState) []Input {
		return []Input{
			{Name: "task_pressure", Value: s.TaskPressure, Weight: 0.75},
			{Name: "energy", Value: s.Energy, Weight: 0.25},
		}
	})
}

// Curiosity is the exploratory drive; low priority so it never competes
// with user-facing signals
func Curiosity(cfg Config) *DriveNeuron {
	return NewDrive("curiosity", types.SignalCuriosity, types.PriorityLow, cfg, func(s types.AgentState) []Input {
		return []Input{
			{Name: "curiosity", Value: s.Curiosity, Weight: 0.6},
			{Name: "energy", Value: s.Energy, Weight: 0.4},
		}
	})
}

// SystemStress watches host load as reported by the system sense
func SystemStress(cfg Config) *DriveNeuron {
	return NewDrive("system_stress", types.SignalSystemStress, types.PriorityLow, cfg, func(s types.AgentState) []Input {
		return []Input{
			{Name: "system_load", Value: s.SystemLoad, Weight: 0.8},
			{Name: "task_pressure", Value: s.TaskPressure, Weight: 0.2},
		}
	})
}
