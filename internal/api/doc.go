// Package api defines the types and errors shared by the svcctl packages.
package api
