/*
Package rule pairs patterns with replacements and reconciles competing matches.

	+--------+   +--------+   +--------+
	| Rule A |   | Rule B |   | Rule C |
	+---+----+   +---+----+   +---+----+
	    |            |            |
	    +------------+------------+
	                 |
	        candidates (original buffer)
	                 |
	     sort by (start, priority, id)
	                 |
	        walk claimed intervals
	                 |
	          accepted matches

🎯 Purpose:
- Describe one rewrite as pattern + Replacer + metadata
- Match every rule against the same immutable snapshot
- Turn overlapping candidates into either a skip or a *ConflictError

⚡ Guarantees:
- Accepted matches are pairwise disjoint
- Listing order never changes the outcome; only Priority and rule id do
- A broken pattern disqualifies its rule without affecting the others
*/
package rule
