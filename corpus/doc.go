// Package corpus runs a directory tree of conformance scripts against the
// engine, test262 style.
//
// Each script may start with YAML frontmatter between the "/*---" and
// "---*/" markers:
//
//	description: typeof null
//	includes: [compareArray.js]
//	flags: [onlyStrict]
//	features: [BigInt]
//	engine: ">= 0.0.0"
//	negative:
//	  phase: runtime
//	  type: TypeError
//
// A script is run in non-strict mode unless flagged onlyStrict, and again in
// strict mode unless flagged noStrict or raw. Scripts flagged async must call
// $DONE() once they complete. Every run gets a fresh session.
package corpus
