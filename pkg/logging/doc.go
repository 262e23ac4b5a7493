// Package logging provides subsystem-tagged logging for svcctl on top of
// log/slog.
//
// Every entry carries a subsystem, such as "Registry", "Cascade" or "Flow",
// next to the message:
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Provider", "Enabling %d controller services", n)
//	logging.Debug("ServiceNode", "State change %s -> %s", oldState, newState)
//	logging.Error("Cascade", err, "Deactivation stopped at %s", ref)
//
// Nothing is logged until InitForCLI is called. Discard silences everything
// again, which tests use.
//
// ParseLevel turns the logLevel setting of config.yaml into a LogLevel.
package logging
