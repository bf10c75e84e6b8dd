// Package lint is a codespell-compatible spelling checker.
//
// The builtin engine tokenizes every text file under the configured paths and
// looks each word up in a codespell-format dictionary. With fix enabled, words
// with exactly one correction are rewritten in place, keeping their case.
// The codespell engine shells out to the real tool with the same skip list.
package lint
