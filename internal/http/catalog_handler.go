package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/catalog"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CatalogHandler struct {
	repo    catalog.RepoInterface
	timeout time.Duration
}

func NewCatalogHandler(repo catalog.RepoInterface, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		repo:    repo,
		timeout: timeout,
	}
}

// GET /api/v1/products
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	products, err := h.repo.GetAllProducts(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/products/{product_id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := parseInt64Param(r, "product_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a number")
		return
	}

	product, err := h.repo.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "no such product")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// POST /api/v1/admin/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if product.Name == "" || product.Price <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product", "name and a positive price are required")
		return
	}

	id, err := h.repo.CreateProduct(ctx, &product)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not create product")
		return
	}
	product.ID = id
	respondJSON(w, http.StatusCreated, product)
}

// PUT /api/v1/admin/products/{product_id}
func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := parseInt64Param(r, "product_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a number")
		return
	}

	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	product.ID = id

	if err := h.repo.UpdateProduct(ctx, &product); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "no such product")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not update product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DELETE /api/v1/admin/products/{product_id}
func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := parseInt64Param(r, "product_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a number")
		return
	}

	if err := h.repo.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "no such product")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/blog
func (h *CatalogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	posts, err := h.repo.ListPosts(ctx, true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not list posts")
		return
	}
	if posts == nil {
		posts = []*domain.BlogPost{}
	}
	respondJSON(w, http.StatusOK, posts)
}

// GET /api/v1/blog/{slug}
func (h *CatalogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	slug := chi.URLParam(r, "slug")
	post, err := h.repo.GetPostBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, catalog.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "post_not_found", "no such post")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load post")
		return
	}
	if !post.Published {
		respondError(w, http.StatusNotFound, "post_not_found", "no such post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// POST /api/v1/admin/blog
func (h *CatalogHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var post domain.BlogPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if post.Title == "" || post.Slug == "" {
		respondError(w, http.StatusBadRequest, "invalid_post", "title and slug are required")
		return
	}

	id, err := h.repo.CreatePost(ctx, &post)
	if err != nil {
		if errors.Is(err, catalog.ErrDuplicateSlug) {
			respondError(w, http.StatusConflict, "duplicate_slug", "slug already in use")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not create post")
		return
	}
	post.ID = id
	respondJSON(w, http.StatusCreated, post)
}

// PUT /api/v1/admin/blog/{post_id}
func (h *CatalogHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := parseInt64Param(r, "post_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_post_id", "post_id must be a number")
		return
	}

	var post domain.BlogPost
	if err := json.NewDecoder(r.Body).Decode(&post); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	post.ID = id

	if err := h.repo.UpdatePost(ctx, &post); err != nil {
		switch {
		case errors.Is(err, catalog.ErrPostNotFound):
			respondError(w, http.StatusNotFound, "post_not_found", "no such post")
		case errors.Is(err, catalog.ErrDuplicateSlug):
			respondError(w, http.StatusConflict, "duplicate_slug", "slug already in use")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "could not update post")
		}
		return
	}
	respondJSON(w, http.StatusOK, post)
}

// DELETE /api/v1/admin/blog/{post_id}
func (h *CatalogHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := parseInt64Param(r, "post_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_post_id", "post_id must be a number")
		return
	}

	if err := h.repo.DeletePost(ctx, id); err != nil {
		if errors.Is(err, catalog.ErrPostNotFound) {
			respondError(w, http.StatusNotFound, "post_not_found", "no such post")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not delete post")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseInt64Param(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
