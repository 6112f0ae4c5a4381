/*
Package tagschema implements the tag-schema validator (spec.md §4.8, C8): a
constrained JSON-Schema subset applied to a record's tags, using
github.com/santhosh-tekuri/jsonschema/v5 (the JSON-Schema validator spec.md
§1 names as an external collaborator) restricted to the keyword subset
spec.md lists.

A protocol's `$tags` rule-set fragment uses two DWN-specific conveniences,
`requiredTags` and `allowUndefinedTags`, instead of raw JSON-Schema
`required`/`additionalProperties` — BuildDocument translates between them
before compiling, and ValidateFragment rejects fragments outside the
supported type/keyword subset at Protocols/Configure time rather than at
first use.
*/
package tagschema
