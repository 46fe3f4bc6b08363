// Package oxido runs programs written in the oxido scripting language.
//
// The simplest entry point is Run with a Config:
//
//	cfg := oxido.NewConfig(false, false, false)
//	defer cfg.Free()
//	err := oxido.Run("main.oxi", source, cfg)
//
// Hosts that need control over streams, limits, cancellation or caching of
// parsed programs construct an Engine instead.
package oxido
