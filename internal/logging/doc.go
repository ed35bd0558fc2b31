// Package logging builds the process slog.Logger and provides Journal, the
// append-only diagnostic log shared by the probe harness and the CLI.
//
// Components accept a *slog.Logger in their constructor. When none is
// given they fall back to Nop().
package logging
