package routes

import (
	"spicery/admin"
	"spicery/cart"
	"spicery/checkout"
	"spicery/globals"
	"spicery/middleware"
	"spicery/orders"
	"spicery/pay"
	"spicery/products"
	"spicery/ratelim"
	"spicery/wishlist"

	"github.com/julienschmidt/httprouter"
)

// Deps carries the handlers and shared middleware the routes are built from.
type Deps struct {
	Auth        *middleware.Auth
	RateLimiter *ratelim.RateLimiter
	Idempotency *pay.Idempotency

	Cart     *cart.Handler
	Checkout *checkout.Handler
	Orders   *orders.Handler
	Products *products.Handler
	Wishlist *wishlist.Handler
	Admin    *admin.Handler
}

func (d Deps) user() func(httprouter.Handle) httprouter.Handle {
	return middleware.Chain(d.Auth.Authenticate, d.RateLimiter.Limit)
}

func (d Deps) admin() func(httprouter.Handle) httprouter.Handle {
	return middleware.Chain(
		d.Auth.Authenticate,
		middleware.RequireRoles(globals.RoleAdmin),
		d.RateLimiter.Limit,
	)
}

// Register mounts every API route on router.
func Register(router *httprouter.Router, d Deps) {
	AddProductRoutes(router, d)
	AddCartRoutes(router, d)
	AddWishlistRoutes(router, d)
	AddCheckoutRoutes(router, d)
	AddOrderRoutes(router, d)
	AddAdminRoutes(router, d)
}

func AddProductRoutes(router *httprouter.Router, d Deps) {
	router.GET("/api/products", d.RateLimiter.Limit(d.Products.ListProducts))
	router.GET("/api/products/:id", d.RateLimiter.Limit(d.Products.GetProduct))
}

func AddCartRoutes(router *httprouter.Router, d Deps) {
	user := d.user()
	router.GET("/api/cart", user(d.Cart.GetCart))
	router.POST("/api/cart", user(d.Cart.AddToCart))
	router.PUT("/api/cart", user(d.Cart.UpdateCart))
	router.DELETE("/api/cart", user(d.Cart.RemoveFromCart))
	router.DELETE("/api/cart/clear", user(d.Cart.ClearCart))
	router.POST("/api/cart/coupon", user(d.Cart.PreviewCoupon))
}

func AddWishlistRoutes(router *httprouter.Router, d Deps) {
	user := d.user()
	router.GET("/api/wishlist", user(d.Wishlist.GetWishlist))
	router.POST("/api/wishlist", user(d.Wishlist.AddToWishlist))
	router.DELETE("/api/wishlist", user(d.Wishlist.RemoveFromWishlist))
	router.POST("/api/wishlist/move-to-cart", user(d.Wishlist.MoveToCart))
}

func AddCheckoutRoutes(router *httprouter.Router, d Deps) {
	router.POST("/api/checkout", middleware.Chain(
		d.Auth.Authenticate,
		d.RateLimiter.Limit,
		d.Idempotency.Wrap,
	)(d.Checkout.Checkout))
}

func AddOrderRoutes(router *httprouter.Router, d Deps) {
	user := d.user()
	router.GET("/api/orders", user(d.Orders.ListMyOrders))
	router.GET("/api/orders/:orderNumber", user(d.Orders.GetOrder))
	router.GET("/api/orders/:orderNumber/invoice", user(d.Orders.Invoice))
	router.POST("/api/orders/:orderNumber/pay", middleware.Chain(
		d.Auth.Authenticate,
		d.RateLimiter.Limit,
		d.Idempotency.Wrap,
	)(d.Orders.PayOrder))
	router.PATCH("/api/orders/:orderNumber/status", d.admin()(d.Orders.UpdateStatus))
}

func AddAdminRoutes(router *httprouter.Router, d Deps) {
	admin := d.admin()
	router.GET("/api/admin/orders", admin(d.Orders.ListAll))
	router.GET("/api/admin/orders/:orderNumber/next", admin(d.Orders.NextStatuses))
	router.POST("/api/admin/orders/:orderNumber/refund", admin(d.Orders.Refund))
	router.POST("/api/admin/invoices/verify", admin(d.Orders.VerifyInvoice))
	router.POST("/api/admin/products", admin(d.Products.CreateProduct))
	router.PATCH("/api/admin/products/:id/stock", admin(d.Products.AdjustStock))
	router.PUT("/api/admin/coupons", admin(d.Admin.SaveCoupon))
}
