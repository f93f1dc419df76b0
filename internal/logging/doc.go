// Package logger provides leveled console logging for securetransfer.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output carries a colored prefix so it stands apart from the
// command's own result messages.
//
// # Verbosity Levels
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details and errors
//
// Without flags, only critical and user-facing warnings are shown.
//
// # Log Methods
//
//	Logger.Infof()       // Shown with --verbose or --debug
//	Logger.Debugf()      // Shown only with --debug
//	Logger.Warnf()       // Shown with --verbose or --debug
//	Logger.WarnfAlways() // Always shown (critical warnings)
//	Logger.WarnfUser()   // User-facing warnings
//	Logger.Errorf()      // Shown with --debug
//
// # Usage
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Listening on %s", addr)
//
// The root command creates a logger in its PersistentPreRun. Internal
// packages that report progress take a Logger field; its zero value is
// silent except for warnings that must always reach the operator.
package logger
