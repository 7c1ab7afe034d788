package quality

import (
	"fmt"
	"log"

	"clinical-coding-be/pkg/workflow/state"
)

// Config carries the per-intent confidence policy. Both maps are explicit
// deployment configuration; diagnostic and procedural intents typically get
// a multiplier boost reflecting their clinical criticality.
type Config struct {
	Thresholds  map[state.Intent]float64
	Multipliers map[state.Intent]float64
}

// DefaultConfig returns the baseline policy used when the deployment does
// not override it.
func DefaultConfig() Config {
	return Config{
		Thresholds: map[state.Intent]float64{
			state.IntentDiagnostic: 0.60,
			state.IntentProcedural: 0.60,
			state.IntentSymptom:    0.50,
			state.IntentCodeLookup: 0.65,
			state.IntentGeneral:    0.45,
		},
		Multipliers: map[state.Intent]float64{
			state.IntentDiagnostic: 1.15,
			state.IntentProcedural: 1.10,
			state.IntentSymptom:    1.0,
			state.IntentCodeLookup: 1.0,
			state.IntentGeneral:    1.0,
		},
	}
}

// Verdict is the quality stage output: the single scalar confidence plus the
// pass/fail flag that drives the router.
type Verdict struct {
	Score      float64
	Threshold  float64
	Multiplier float64
	Passed     bool
	Reason     string
}

// Gate scores a candidate set against the intent's confidence policy.
type Gate struct {
	config Config
	logger *log.Logger
}

func NewGate(config Config, logger *log.Logger) *Gate {
	return &Gate{
		config: config,
		logger: logger,
	}
}

// Evaluate computes confidence = clamp01(max contribution × intent
// multiplier) and compares it to the intent's threshold. A verdict below
// threshold fails validation and sends the router onto the fallback branch.
func (g *Gate) Evaluate(candidates []state.CandidateCode, intent state.Intent) Verdict {
	threshold := g.threshold(intent)
	multiplier := g.multiplier(intent)

	if len(candidates) == 0 {
		g.logger.Printf("[QUALITY] Intent=%s: no candidate codes, score=0.00 (threshold %.2f) -> FAIL", intent, threshold)
		return Verdict{
			Score:      0,
			Threshold:  threshold,
			Multiplier: multiplier,
			Passed:     false,
			Reason:     "no candidate codes to score",
		}
	}

	var maxContribution float64
	for _, candidate := range candidates {
		if candidate.ConfidenceContribution > maxContribution {
			maxContribution = candidate.ConfidenceContribution
		}
	}

	score := clamp01(maxContribution * multiplier)
	passed := score >= threshold

	status := "FAIL"
	if passed {
		status = "PASS"
	}
	g.logger.Printf("[QUALITY] Intent=%s: max contribution %.4f x %.2f = %.4f vs threshold %.2f -> %s",
		intent, maxContribution, multiplier, score, threshold, status)

	return Verdict{
		Score:      score,
		Threshold:  threshold,
		Multiplier: multiplier,
		Passed:     passed,
		Reason: fmt.Sprintf("max contribution %.2f adjusted by %.2f against threshold %.2f",
			maxContribution, multiplier, threshold),
	}
}

func (g *Gate) threshold(intent state.Intent) float64 {
	if t, ok := g.config.Thresholds[intent]; ok {
		return t
	}
	return 0.5
}

func (g *Gate) multiplier(intent state.Intent) float64 {
	if m, ok := g.config.Multipliers[intent]; ok {
		return m
	}
	return 1.0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
