// Package setter turns resolved policies into execution-library settings.
//
// A Setter mirrors the command and thread pool properties a Hystrix-style
// library expects. Setter.Policies translates it into failsafe-go policies
// so commands can be executed in-process:
//
//	cache := setter.NewCache(reg, setter.Options{Logger: logger})
//	result, err := cache.Get(ctx, "orders", func() (any, error) {
//	    return client.PlaceOrder(ctx, req)
//	})
//
// The Cache keeps one executor per command so breaker and bulkhead state is
// shared between calls, and rebuilds executors when a new snapshot is
// installed.
package setter
