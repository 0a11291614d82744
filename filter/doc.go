// Package filter compiles nested filter strings into predicate calls.
//
// A filter is a list of `column:operator:value` terms joined by `,` (AND) or
// `|` (OR) and grouped with parentheses:
//
//	(name:=:john,age:>:30)|tags:in:admin staff
//
// A backslash escapes the next character, so structural characters can be
// used inside a term (`title:=:a\,b`). Escaped parentheses are not counted
// when checking that brackets are balanced, so `a:=:\(` is valid. The escaped
// word `\null` stands for NULL. Values of `in` and `!in` are space separated
// lists.
//
// The string is scanned exactly once. Predicates are emitted to a Sink as
// soon as each term completes, in source order; groups are opened with
// Sink.WithGroup and filled before the scan continues.
//
// Columns are looked up in a schema.Fields. The type of the column decides
// how `in` is rewritten:
//
//	type   in    in!   !in
//	jsonb  ?|    ?&    ?&
//	array  &&    @>    !in
//
// Containment operators receive their value as an array literal ({a,b}).
// A plain `in` / `!in` becomes a group with a null check and an IN list.
package filter
