// Package logging provides the shared logging facade for ghascaler.
//
// All subsystems log through the package-level Debug/Info/Warn/Error
// functions, tagging each entry with a subsystem name so operators can
// filter the output of a single component (Scaler, Executor, Fleet, ...).
// The facade is a thin wrapper over log/slog; Init must be called once at
// startup before any other function in this package.
package logging
