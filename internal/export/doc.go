// Package export reads the portal's employee export files.
//
// An export is one or more .xlsx workbooks dropped into a download
// directory. Files are read in lexical filename order; partial downloads
// (.crdownload, .tmp, .part), Office lock files and dotfiles are ignored.
// The first HeaderRows rows of the worksheet are layout and are skipped.
//
// The package also writes single-sheet import workbooks for the portal and
// parses the CSV accounting report.
package export
