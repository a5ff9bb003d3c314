// Package domain defines the core entities and host-runtime ports for stunt
// resolution.
//
// The model is centered around a few concepts:
//
// # StuntContext
//
// A StuntContext is built per roll attempt and owned by the orchestrator for
// the duration of one resolution. Adapters fill in system-specific values
// (difficulty, statistic, adjustments) as the pipeline advances; the context
// is discarded after the result is presented.
//
// # Options
//
// Options carry the player-facing knobs for one stunt: flavor tier, tactical
// risk, advantage and pool requests, roll category and key, and an optional
// difficulty override.
//
// # Ports
//
// The host virtual tabletop owns actors, dice and chat. Character, Strike,
// RollEngine, ConditionApplier, Notifier and the chooser interfaces describe
// exactly what the pipeline needs from that runtime, so the decision logic
// stays testable without a UI.
package domain
