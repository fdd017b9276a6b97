// Package host runs untrusted code behind the load gate.
//
// A Session owns an ambient namespace (print, open, load, loader) around
// the original loader for a module catalog. Bootstrap revokes "open",
// installs the gate over "load", removes "loader", seals the namespace and
// pre-loads convenience modules through the gate. Programs then reach
// capabilities only through Env.Load and Env.Import.
//
//	s, err := host.NewSession(host.WithAllowlist(entities.NewAllowlist("math")))
//	if err != nil {
//	    return err
//	}
//	res, err := s.Execute(ctx, func(ctx context.Context, env *host.Env) error {
//	    m, err := env.Load(ctx, "math")
//	    if err != nil {
//	        return err
//	    }
//	    var out struct{ Value float64 }
//	    return env.Call(ctx, m, "sqrt", map[string]float64{"x": 2}, &out)
//	})
//
// Executor does the same for WebAssembly guests through the capgate host
// module. ConfigLoader reads the YAML configuration that drives both.
package host
