// Package app contains the core application logic. It wires the workspace,
// the build file cache, graph resolution and the executor together,
// decoupled from any specific entrypoint like a CLI.
package app
