package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/shiftreports/internal/cache"
	"github.com/geocoder89/shiftreports/internal/domain/client"
	"github.com/gin-gonic/gin"
)

type ClientStore interface {
	ListClients(ctx context.Context) ([]client.Client, error)
	CreateClient(ctx context.Context, req client.CreateClientRequest) (client.Client, error)
}

type ClientsHandler struct {
	clients ClientStore
	cache   *cache.Cache[[]client.Client]
}

const clientsCacheKey = "clients:all"

func NewClientsHandler(clients ClientStore, listCache *cache.Cache[[]client.Client]) *ClientsHandler {
	return &ClientsHandler{clients: clients, cache: listCache}
}

func (h *ClientsHandler) ListClients(ctx *gin.Context) {
	if h.cache != nil {
		if cached, ok := h.cache.Get(clientsCacheKey); ok {
			ctx.Header("X-Cache", "HIT")
			RespondJSONWithETag(ctx, http.StatusOK, cached)
			return
		}
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	list, err := h.clients.ListClients(cctx)
	if err != nil {
		RespondDomainError(ctx, err, "Could not list clients")
		return
	}

	if h.cache != nil {
		h.cache.Set(clientsCacheKey, list)
		ctx.Header("X-Cache", "MISS")
	}

	RespondJSONWithETag(ctx, http.StatusOK, list)
}

func (h *ClientsHandler) CreateClient(ctx *gin.Context) {
	var req client.CreateClientRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	c, err := h.clients.CreateClient(cctx, req)
	if err != nil {
		RespondDomainError(ctx, err, "Could not create client")
		return
	}

	if h.cache != nil {
		h.cache.Delete(clientsCacheKey)
	}

	ctx.JSON(http.StatusCreated, c)
}
