// Package output renders command results as a table, JSON or YAML.
//
// All formatters start from the JSON form of the value, so field names and
// text marshalers are the same in every format.
package output
