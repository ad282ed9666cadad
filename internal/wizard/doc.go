// Package wizard implements the stage-sequenced configuration controller
// behind the data-extraction wizard.
//
// The wizard walks five ordered stages: sport selection, filter selection,
// extraction configuration, data materialization and export. The package
// is UI-agnostic: a Controller consumes user actions, drives the slow
// data-loader calls through a single-flight FetchCoordinator, mutates the
// session's PipelineState from a single run loop, and publishes change
// events on a Bus the rendering layer subscribes to.
//
// Invalidation cascades: clearing a stage clears every later stage, in
// order, and bumps per-stage generation counters so fetch results that
// were in flight at invalidation time are discarded on arrival.
package wizard
