// Package config loads and validates the ghascaler configuration file.
//
// The configuration is a single YAML document describing the GitHub
// connection, the scaler policy, the HTTP server, optional dynamic
// provisioning, and the machine fleet. String values may reference
// environment variables (${NAME}) or files relative to the configuration
// directory (${file:path}); see Resolver.
//
// Loading is strict: unknown fields, unresolvable variables, and invalid
// bounds are all load-time errors. The rest of the system never plans
// against an unvalidated configuration.
package config
