// Package textutil provides small text helpers shared by the CLI output
// parsers and the code that derives filenames from device and show names.
//
// The parsers for tuner helper output all start from Lines and KeyValue so
// blank lines, carriage returns and spacing quirks are handled in one place.
package textutil
