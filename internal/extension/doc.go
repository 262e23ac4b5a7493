// Package extension is the catalog of controller service types svcctl can
// construct, with a small set of built-in types.
package extension
