package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/app"
	"github.com/Georgeissacezzat/Flash-Sale-Checkout/internal/domain"
)

// ProductCatalog is the minimal interface needed for the product endpoints.
type ProductCatalog interface {
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (app.ProductView, error)
}

// HandleProducts returns an HTTP handler for creating and listing products.
func HandleProducts(svc ProductCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			products, err := svc.ListProducts(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				return
			}
			resp := make([]productResponse, 0, len(products))
			for _, p := range products {
				resp = append(resp, productResponse{
					ID:         p.ID,
					Name:       p.Name,
					PriceCents: p.PriceCents,
					Stock:      p.Stock,
				})
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(resp)
		case http.MethodPost:
			var req createProductRequest
			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
				return
			}

			product, err := svc.CreateProduct(r.Context(), app.CreateProductInput{
				Name:       req.Name,
				PriceCents: req.PriceCents,
				Stock:      req.Stock,
			})
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrProductNameRequired):
					writeError(w, http.StatusBadRequest, codeProductNameRequired, err.Error())
				case errors.Is(err, domain.ErrInvalidPrice):
					writeError(w, http.StatusBadRequest, codeInvalidPrice, err.Error())
				case errors.Is(err, domain.ErrInvalidStock):
					writeError(w, http.StatusBadRequest, codeInvalidStock, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(productResponse{
				ID:         product.ID,
				Name:       product.Name,
				PriceCents: product.PriceCents,
				Stock:      product.Stock,
			})
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleGetProduct returns an HTTP handler serving product details with the
// live availability figure.
func HandleGetProduct(svc ProductCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		productID, ok := parseProductPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		view, err := svc.GetProduct(r.Context(), productID)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidID):
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case errors.Is(err, domain.ErrProductNotFound):
				writeError(w, http.StatusNotFound, codeProductNotFound, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(productViewResponse{
			ID:             view.ID,
			Name:           view.Name,
			PriceCents:     view.PriceCents,
			AvailableStock: view.AvailableStock,
		})
	}
}

func parseProductPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] != "products" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createProductRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type productResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type productViewResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PriceCents     int64  `json:"price_cents"`
	AvailableStock int    `json:"available_stock"`
}
