// Package anvil is a small application runtime: a dependency-injection
// container that builds and wires managed components, and declarative
// transactions applied to those components through generated decorators.
//
// A typical bootstrap:
//
//	reg := anvil.NewRegistry()
//	_ = anvil.Component[*OrderRepository](reg, "orderRepository")
//	_ = anvil.Provide(reg, "orderService", newOrderService, anvil.Transactional())
//
//	manager := anvil.NewTransactionManager(db)
//	factory := anvil.NewTransactionalFactory(manager)
//	BindOrderService(factory) // generated by anvil-txgen
//
//	c := anvil.NewContainer(reg, anvil.WithPostProcessor(factory))
//	if err := c.Start(ctx); err != nil { ... }
//	anvil.SetContainer(c)
//	defer anvil.ResetContainer()
package anvil
