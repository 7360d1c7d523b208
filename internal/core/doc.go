// Package core converts GPS collar exports into one canonical fix format.
//
// This package holds all domain logic, independent of any UI or transport
// layer. The command line tool, the HTTP server and tests use it unchanged.
//
// # Pipeline
//
// A conversion runs in fixed stages:
//
//  1. Load: [LoadFile] or [LoadReader] reads delimited text (separator found
//     by [SniffDelimiter]) or the first sheet of an .xlsx workbook into a
//     [Table]. The reader chain from [WrapSource] strips the BOM and checks
//     UTF-8.
//  2. Map: a [FieldMapping] names the source column for each [Role].
//     [AutoSuggest] proposes one from header names.
//  3. Parse: serials are kept verbatim, times go through a [TimeParser],
//     coordinates through [ParseCoordinate]. Bad cells become absent values.
//  4. Filter: [ApplyCutoffs] applies the global start, then per-serial starts.
//  5. Deduplicate: [ResolveDuplicates] shifts repeated (serial, time) rows
//     forward by whole seconds.
//  6. Sort and serialize: [SortCanonical], then [WriteCanonical] or
//     [ExportFile].
//
// [Convert] runs stages 2 to 6 over a loaded table.
//
// # Output Format
//
//	serialnumber;time;latitude;longitude
//	"C001";"2024-01-01 10:00:00";"45.1234567";"7.6543210"
//
// Times are UTC wall clock values with second precision. Coordinates have
// exactly seven decimals. Absent values are written as "".
//
// # Sessions
//
// A [Service] keeps interactive [Session] values: a loaded table, per-serial
// cutoffs and the latest result. Conversions are bounded by a
// [ConversionLimiter]; idle sessions are removed by
// [Service.StartSessionSweeper].
//
// # Error Handling
//
// Failures surface as [LoadError], [MappingError], [DateFormatError] and
// [ExportError]. [MapError] turns any error into a [UserMessage] with a code
// for support reference (LOAD, MAP, DATE, EXP, SES, UPL, FILE).
package core
