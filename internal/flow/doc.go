// Package flow holds the processors and reporting tasks of a flow and the
// controller service references they carry. It starts and stops them for
// the provider's cascades.
package flow
