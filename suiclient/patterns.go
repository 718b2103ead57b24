package suiclient

import "github.com/movefuzz/fuzz-acceptor/extract"

// Extraction patterns for identifiers in sui CLI output. The output format
// drifts across versions (section markers, box-drawing characters), so each
// site carries a fallback; First tries them in order.

// PackageIDPatterns locate the published package identifier in publish
// output.
var PackageIDPatterns = []extract.Pattern{
	extract.MustPattern("package-id", `(?i)PackageID:\s*(0x[0-9a-fA-F]+)`),
	extract.MustPattern("package-id-spaced", `(?i)Package\s+ID\s*[:|]\s*(0x[0-9a-fA-F]+)`),
}

// CreatedObjectPatterns locate the first created object identifier in call
// output. The primary pattern scopes the match to the Created Objects
// section; the fallback accepts any box-drawn ObjectID row.
var CreatedObjectPatterns = []extract.Pattern{
	extract.MustPattern("created-objects-section", `(?is)Created Objects:.*?ObjectID:\s*(0x[0-9a-fA-F]+)`),
	extract.MustPattern("object-id-row", `(?i)│\s*ObjectID:\s*(0x[0-9a-fA-F]+)`),
}
