// Tycho is an SQL query and export service.
//
// It registers PostgreSQL and MySQL databases, runs read-only SQL
// against them, and exports query results to CSV, JSON, or Markdown
// files through asynchronous, cancellable export tasks.
//
// Usage:
//
//	# Start server with default configuration
//	tycho run
//
//	# Start with custom configuration file
//	tycho run --config /path/to/config.yaml
//
//	# Show version information
//	tycho version
package main

func main() {
	Execute()
}
