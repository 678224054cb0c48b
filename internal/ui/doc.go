// Package ui turns engine events into concise console messages: external
// command lifecycles and nested task progress. Detailed telemetry continues to
// flow through the structured logger.
package ui
