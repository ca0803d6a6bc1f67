// Package ui implements the live operation dashboard using bubbletea's Elm
// architecture.
//
// The [Dashboard] model owns all render state. Engine events arrive as
// messages read off a [tasks.Reporter] channel, so no goroutine other than
// the bubbletea loop ever touches what is drawn: one gauge per category,
// a scrolling tail of per-item outcomes, and a running totals bar.
//
// Pressing q, esc, or ctrl+c mid-operation cancels the engine's context.
// The dashboard keeps consuming events until the engine reports Done, which
// means in-flight writes have unwound before the terminal is restored.
package ui
