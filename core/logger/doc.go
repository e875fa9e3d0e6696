// Package logger builds the structured logger used to record pipeline runs.
package logger
