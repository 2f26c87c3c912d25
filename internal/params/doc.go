// Package params turns --set and --params-file inputs into constant columns.
//
// Values are layered: .env files first (parsed with godotenv, later files
// override earlier ones), then pgstitch.yaml params, then --set flags. The
// merged map becomes one constant column per key, in key order, appended to
// every batch of a run.
//
//	values, err := params.Resolve(params.Sources{
//	    Files: []string{"load.env"},
//	    Pairs: []string{"region=emea"},
//	})
//	transform, err := reconcile.ConstantColumns(params.Constants(values))
//
// The same key=value parsing serves --rename old=new.
package params
