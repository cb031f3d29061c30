// Package workflow coordinates one lead cycle: record, review, send, reset.
//
// A Cycle owns the capture session, starts the location lookup when the
// operator reaches the send step, and hands the artifact to the delivery
// orchestrator. After a Sent result it schedules a reset so the next lead
// starts from a clean session. Manual and Failed results leave the artifact
// in place so the operator can retry.
package workflow
