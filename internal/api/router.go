package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultestim/vaultestim/internal/api/handlers"
	"github.com/vaultestim/vaultestim/internal/api/response"
	"github.com/vaultestim/vaultestim/internal/version"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint (no versioning, no auth)
	s.router.Get("/health", s.healthCheck)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware())

		// Catalog routes
		catalogHandler := handlers.NewCatalogHandler(s.catalogFacade)
		progressHandler := handlers.NewProgressHandler(s.progressFacade)
		r.Route("/sets", func(r chi.Router) {
			r.Get("/", catalogHandler.GetSets)
			r.Get("/{setID}/cards", catalogHandler.GetSetCards)
			r.Post("/{setID}/refresh", catalogHandler.RefreshSet)
			r.Get("/{setID}/progress", progressHandler.GetSetProgress)
			r.Get("/{setID}/rarity", progressHandler.GetSetRarity)
		})
		r.Get("/cards/{cardID}/versions", catalogHandler.GetCardVersions)
		r.Get("/cache/stats", catalogHandler.GetCacheStats)

		// Progress routes
		r.Route("/progress", func(r chi.Router) {
			r.Get("/", progressHandler.GetProgress)
			r.Get("/chart", progressHandler.GetChart)
		})

		// Collection routes
		collectionHandler := handlers.NewCollectionHandler(s.collectionFacade)
		r.Route("/collection", func(r chi.Router) {
			r.Get("/", collectionHandler.GetCollection)
			r.Post("/", collectionHandler.AddEntry)
			r.Get("/duplicates", collectionHandler.GetDuplicates)
			r.Post("/duplicates/merge", collectionHandler.MergeDuplicates)
			r.Patch("/{entryID}", collectionHandler.UpdateEntry)
			r.Delete("/{entryID}", collectionHandler.DeleteEntry)
			r.Post("/{entryID}/adjust", collectionHandler.AdjustEntry)
		})

		// Price routes
		priceHandler := handlers.NewPriceHandler(s.priceFacade)
		r.Route("/prices", func(r chi.Router) {
			r.Post("/refresh", priceHandler.RefreshPrices)
			r.Get("/quota", priceHandler.GetQuota)
			r.Get("/{cardID}", priceHandler.GetPrice)
		})

		// Backup routes
		backupHandler := handlers.NewBackupHandler(s.backupFacade)
		r.Route("/backup", func(r chi.Router) {
			r.Get("/", backupHandler.ListBackups)
			r.Post("/", backupHandler.CreateBackup)
		})
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "vaultestim-api",
		"version": version.GetVersion(),
	})
}
