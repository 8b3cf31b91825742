/*
Package batch applies a rule set across an ordered file collection.

🔄 Flow:
1. Each file is a work unit on a bounded errgroup
2. Results land in indexed slots, so output order equals input order
3. The mode decides which results are committed

⚡ Modes:
- atomic: any error or skipped file leaves every result uncommitted (dry run)
- best-effort: files are independent; a conflicted file keeps its original text
*/
package batch
