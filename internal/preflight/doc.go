// Package preflight provides readiness checks for the programs, devices,
// directories and bot credentials leadcast depends on.
//
// These checks run in two contexts:
//   - The lead workflow calls RunAll before opening the camera so a doomed
//     cycle fails before the operator records anything.
//   - The CLI "leadcast status" command renders every check as a table.
//
// Bot checks only run for routes with a token; share checks only run in the
// share delivery mode.
package preflight
