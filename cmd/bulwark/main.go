// Bulwark resolves resilience policies for named commands.
//
// It reads a resilience configuration (defaults plus per-command
// overrides), compiles it into a snapshot of fully resolved policies and
// serves that snapshot to the execution library and over an admin API.
//
// Usage:
//
//	# Start the service with hot reload and the admin server
//	bulwark run --config /etc/bulwark/config.yaml
//
//	# Print the resolved policies of a resilience file
//	bulwark resolve --file resilience.yaml
//
//	# Check a resilience file without installing it
//	bulwark validate --file resilience.yaml
//
//	# Render the flat property key space
//	bulwark properties --file resilience.yaml
//
//	# List install history
//	bulwark history list --limit 10
package main

func main() {
	Execute()
}
