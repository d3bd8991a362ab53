// Package pipeline derives the five-stage workflow status of a project
// (Upload, Scan, Generate POM, Generate Tests, Execute) from the collections
// the backend holds for it.
//
// An Evaluator reads the elements, POMs, tests and executions of a project
// concurrently and runs Derive once all four reads are in. A Tracker wraps
// the evaluator for callers that re-evaluate on every navigation change and
// keeps only the newest result. View turns a State into render-ready nodes.
package pipeline
