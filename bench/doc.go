// Package bench runs collections of benchmark suites one after another and
// reports each suite's progress, errors, results and score as events.
//
// A suite that fails is reported and counted, and the run continues with the
// next suite. The run as a whole fails if any suite failed.
package bench
