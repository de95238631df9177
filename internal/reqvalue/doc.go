// Package reqvalue defines the requirement value model used to group objects
// that need the same downstream fetch.
//
// A requirement is a value derived from a parent object's resolved fields
// and sent as a variable to a child fetch. Values form a closed tree:
//
//   - Null
//   - Scalar: an Int, Float, String, Boolean or Enum literal. The literal kind
//     is part of the value, so Int 1 and Float 1.0 differ.
//   - List: an ordered sequence of values.
//   - Object: an ordered sequence of field values. Field names are recorded
//     for rendering and request encoding but are not part of the value's
//     identity.
//
// Equal and Hash are positional: two objects are equal when their field
// values are equal pairwise in order. The requirement mapper for a fetch slot
// is trusted to emit one fixed field layout, so comparing by position is both
// sufficient and cheaper than matching names. The one part of that contract
// that is checked is arity: EqualStrict and CheckArity report an
// *InvalidShapeError when two objects under the same slot disagree on their
// field count.
//
// Values are immutable. Nothing in this package or its callers mutates a
// Value after construction, which makes Equal and Hash safe to call from any
// number of goroutines.
package reqvalue
