/*
Package config loads rule files for rewriterc.

	                 +-------------+
	                 |   Config    |
	                 |   (rules)   |
	                 +------+------+
	                        |
	     +----------+-------+-------+----------+
	     |          |               |          |
	+----+----+ +---+----+    +-----+---+ +----+----+
	|  YAML   | |  JSON  |    |   HCL   | |  TOML   |
	| Parser  | | Parser |    | Parser  | | Parser  |
	+---------+ +--------+    +---------+ +---------+

🎯 Purpose:
- Pick a parser by file extension through the Register/GetParser registry
- Reject unknown fields in every format
- Validate with field paths (rules[2].pattern.kind) and fill defaults
- Build the engine RuleSet and batch options from the result

🔍 Example:

	cfg, err := config.Load(ctx, ".rewriterc.yaml")
	if err != nil {
		return err
	}
	set, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	b := batch.Run(ctx, files, set, cfg.BatchOptions())
*/
package config
