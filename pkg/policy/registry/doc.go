// Package registry serves resolved policies to dispatch code.
//
// A Registry is constructed once at process start and passed to every
// consumer; there is no package-level instance. It starts UNINITIALIZED and
// moves to READY on the first Install:
//
//	reg := registry.New(registry.WithLogger(logger))
//	if _, err := reg.InstallConfig(cfg); err != nil {
//	    return err
//	}
//	p, err := reg.Lookup("orders")
//
// Lookup is lock-free: it loads one atomic pointer and indexes an immutable
// map. A lookup that starts after Install returns always observes the
// installed snapshot.
//
// # Re-installation
//
// By default a second Install fails with policy.ErrAlreadyInstalled and the
// first snapshot stays active. WithReinstall(ReinstallSwap) makes Install
// swap instead. Replace always swaps and is what hot reload uses.
package registry
