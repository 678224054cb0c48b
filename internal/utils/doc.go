// Package utils hosts the CLI plumbing shared by every codesync command:
// the Viper-backed ConfigurationLoader, the zap LoggerFactory, command
// context accessors, and a writer that flushes after each write so the run
// summary appears promptly on buffered terminals.
package utils
