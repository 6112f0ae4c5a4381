/*
Package filter implements the tagged filter variant and typed lexicographic
encoding shared by the event log (C4) and tag index (C5): Equal, Range
(gt/gte/lt/lte), AnyOf, and StartsWith conditions over string, number, and
boolean values, encoded so that byte-lexicographic ordering matches value
ordering.

No third-party library in the retrieved corpus covers this exact
zero-padded/negative-offset numeric encoding scheme (it is a narrow,
spec-mandated wire format rather than a general-purpose concern), so this
package is implemented on the standard library alone — see DESIGN.md.
*/
package filter
