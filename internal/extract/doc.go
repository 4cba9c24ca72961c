// Package extract implements rule extraction from source text.
//
// Each surface language has an extractor that applies an ordered list of
// independent strategies to the same text. Strategy outputs are
// concatenated, never merged, and each strategy carries its own
// confidence reflecting extraction certainty. A strategy never panics
// past its boundary: failures are recovered, logged, and yield an empty
// contribution so the remaining strategies and files keep going.
//
// SQL extraction is two-tier: a grammar-aware parse walks the expression
// tree when the statement is well formed, and regex strategies take over
// when it is not. Production SQL dialects vary and malformed fragments
// must still yield partial results rather than nothing.
package extract
