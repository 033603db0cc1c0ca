// Package meta holds the runtime schema: types and fields are data loaded
// into a Registry at startup, not compile-time constructs. The package also
// resolves PIRs (property identifier references), the stable identifiers for
// relationship-traversing field paths used by the JCR layer.
package meta
