// Command mdvault is the thin CLI entry point over internal/engine: it
// resolves flags and a config file, hands the work to the engine/lifecycle
// packages, and prints the result. Argument parsing, config loading, and
// terminal rendering are themselves the boundary spec.md treats as an
// external collaborator, not part of the engine it specifies — this binary
// is one possible such collaborator, built the way the teacher's own
// cmd/root.go + main wiring builds one.
package main

func main() {
	Execute()
}
