// Package main hosts the leadcast CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, the capture session,
// the delivery orchestrator and the journal together. The lead command runs
// the full interactive cycle; record and send split it into capture-only and
// delivery-only steps. Status, devices and history are read-only views.
//
// Keep this package lean: behavior lives in the internal packages and is only
// surfaced here.
package main
