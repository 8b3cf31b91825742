/*
Package pattern locates occurrences of a pattern inside an immutable buffer.

	+-----------+     +-----------+     +--------------+
	|  Literal  |     |   Regex   |     |  Structural  |
	| (quoted)  |     |   (RE2)   |     | (tag shape)  |
	+-----+-----+     +-----+-----+     +------+-------+
	      |                 |                  |
	      +--------+--------+                  |
	               |                           |
	        +------+------+           +-------+--------+
	        | text scanner|           | element scanner|
	        +------+------+           +-------+--------+
	               |                           |
	               +------------+--------------+
	                            |
	                     iter.Seq[Match]

🎯 Purpose:
- Find matches of a pattern, ordered by ascending start offset
- Tolerate incidental formatting differences (LooseWhitespace, Structural)
- Fail loudly on malformed patterns with a *PatternError

🔄 Flow:
1. A pattern is built once from its source and options
2. The source is compiled (RE2 program or tag template) at construction
3. Find yields matches lazily; a broken source fails every Find call

⚡ Guarantees:
- Patterns are immutable and safe for concurrent use
- Find never mutates the buffer
- Matches from one Find never overlap; scanning resumes after each match

🔍 Example:

	p := pattern.Structural(`<Alert variant="danger">`, pattern.Options{})
	matches, err := pattern.Collect(p, src)
*/
package pattern
