// ============================================================================
// TaskGrid - Main Entry Point
// ============================================================================
//
// File: cmd/taskgrid/main.go
// Purpose: Application entry point and CLI initialization
//
// Responsibilities:
//   1. Version Management - Inject build info via ldflags
//   2. Panic Recovery - Catch unexpected panics gracefully
//   3. CLI Setup - Build and configure Cobra command interface
//   4. Error Handling - Unified command execution error handling
//
// Version Injection:
//   Variables injected at build time via -ldflags:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./taskgrid --help                 # Show help
//   ./taskgrid --version              # Show version
//   ./taskgrid bench -w counter       # Run the counter workload
//   ./taskgrid status                 # View configuration
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	// Cap GOMAXPROCS to the container CPU quota so the worker pool is not
	// sized against phantom cores.
	_ "go.uber.org/automaxprocs"

	"github.com/ChuLiYu/taskgrid/internal/cli"
)

// Build-time version injection via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "1.0.0"   // Semantic version
	commit  = "dev"     // Git commit hash
	date    = "unknown" // Build timestamp
)

// main is the program entry point
// Initializes CLI, handles panics, and executes commands
func main() {
	// Global panic recovery
	// Prevents uncaught panics from crashing the program
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	// Build CLI command tree
	// Includes bench and status subcommands
	rootCmd := cli.BuildCLI()

	// Set version info for --version flag
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	// Execute command parsing and business logic
	// Exit with error code if command fails
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
