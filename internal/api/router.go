package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/menjalnica/internal/exchange"
	"github.com/erazemk/menjalnica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	engine := exchange.NewEngine(db, exchange.SQLCatalog{}, &exchange.MessageNotifier{DB: db})

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{DB: db}
	exchangesHandler := &ExchangesHandler{Engine: engine}
	messagesHandler := &MessagesHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: register and login.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated account routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}/role", authMW(requireAdmin(http.HandlerFunc(usersHandler.UpdateRole))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Stamp catalog.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))

	// Exchanges.
	mux.Handle("POST /api/exchanges", authMW(http.HandlerFunc(exchangesHandler.Propose)))
	mux.Handle("GET /api/exchanges", authMW(http.HandlerFunc(exchangesHandler.History)))
	mux.Handle("GET /api/exchanges/pending", authMW(http.HandlerFunc(exchangesHandler.ListPending)))
	mux.Handle("POST /api/exchanges/{id}/resolve", authMW(http.HandlerFunc(exchangesHandler.Resolve)))

	// Inbox.
	mux.Handle("GET /api/messages", authMW(http.HandlerFunc(messagesHandler.List)))
	mux.Handle("GET /api/messages/unseen", authMW(http.HandlerFunc(messagesHandler.UnseenCount)))
	mux.Handle("PUT /api/messages/{id}/seen", authMW(http.HandlerFunc(messagesHandler.MarkSeen)))

	return mux
}
