// Package config provides loading and environment overlay for txq runtime
// configuration. It exposes a Default() baseline; files may be JSON or YAML
// and only need to name the fields they change.
//
// Example:
//
//	cfg, err := config.Load("/etc/txq/txq.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{DataDir: config.DefaultDataDir(), Config: cfg})
//	defer rt.Close()
package config
