// Package convert defines the conversion backend contract, the registry that
// routes format pairs to backends, and the error taxonomy conversion callers
// classify against. Concrete backends live in subpackages; wiring happens in
// the backends subpackage.
package convert
