// Package app bootstraps the application: it loads configuration,
// initializes logging, assembles the reconciliation core with its
// collaborators, and runs the loop and the HTTP server side by side
// until shutdown.
package app
