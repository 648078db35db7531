package httpapi

import (
	"net/http"
	"strings"

	"chainlogistics.org/internal/identity"
	"chainlogistics.org/internal/tracking"
)

type batchRegisterRequest struct {
	Products []tracking.ProductConfig `json:"products"`
}

type batchRegisterResponse struct {
	Products []tracking.Product `json:"products"`
}

type deactivateRequest struct {
	Reason string `json:"reason"`
}

type transferRequest struct {
	NewOwner     string `json:"new_owner"`
	ConsentToken string `json:"consent_token"`
}

type actorRequest struct {
	Actor string `json:"actor"`
}

type authorizedResponse struct {
	Actor      string `json:"actor"`
	Authorized bool   `json:"authorized"`
}

func (a *API) handleProductsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerProduct(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleProductsBatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerProductBatch(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

// handleProductResource dispatches /v1/products/{id} and its sub-resources.
func (a *API) handleProductResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/products/")
	if path == "" || strings.HasSuffix(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	segments := strings.Split(path, "/")
	id := segments[0]
	rest := segments[1:]

	switch {
	case len(rest) == 0:
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.getProduct(w, r, id)
	case rest[0] == "deactivate" && len(rest) == 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.deactivateProduct(w, r, id)
	case rest[0] == "reactivate" && len(rest) == 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.reactivateProduct(w, r, id)
	case rest[0] == "transfer" && len(rest) == 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transferProduct(w, r, id)
	case rest[0] == "actors" && len(rest) == 1:
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addActor(w, r, id)
	case rest[0] == "actors" && len(rest) == 2:
		switch r.Method {
		case http.MethodGet:
			a.checkActor(w, r, id, rest[1])
		case http.MethodDelete:
			a.removeActor(w, r, id, rest[1])
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
		}
	case rest[0] == "events" && len(rest) == 1:
		switch r.Method {
		case http.MethodPost:
			a.appendEvent(w, r, id)
		case http.MethodGet:
			a.listEvents(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case rest[0] == "events" && len(rest) == 2 && rest[1] == "batch":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.appendEventBatch(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) registerProduct(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var cfg tracking.ProductConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.svc.RegisterProduct(r.Context(), owner, cfg)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.register", map[string]any{
		"product_id": p.ID,
		"category":   p.Category,
	})

	w.Header().Set("Location", "/v1/products/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) registerProductBatch(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req batchRegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Products) == 0 {
		writeError(w, r, http.StatusBadRequest, "products are required")
		return
	}

	products, err := a.svc.RegisterProducts(r.Context(), owner, req.Products)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.register_batch", map[string]any{
		"count": len(products),
	})

	writeJSON(w, http.StatusCreated, batchRegisterResponse{Products: products})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request, id string) {
	p, err := a.svc.GetProduct(r.Context(), id)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) deactivateProduct(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req deactivateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.DeactivateProduct(r.Context(), caller, id, req.Reason); err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.deactivate", map[string]any{
		"product_id": id,
		"reason":     req.Reason,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
}

func (a *API) reactivateProduct(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := a.svc.ReactivateProduct(r.Context(), caller, id); err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.reactivate", map[string]any{
		"product_id": id,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "active"})
}

// transferProduct needs proof from both sides: the caller's bearer token and
// the receiver's consent token carried in the body.
func (a *API) transferProduct(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req transferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newOwner := strings.TrimSpace(req.NewOwner)
	if newOwner == "" {
		writeError(w, r, http.StatusBadRequest, "new_owner is required")
		return
	}
	if strings.TrimSpace(req.ConsentToken) == "" {
		writeError(w, r, http.StatusBadRequest, "consent_token is required")
		return
	}

	consenting, err := identity.ParseAndValidate(req.ConsentToken)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid consent token")
		return
	}
	if consenting != newOwner {
		writeError(w, r, http.StatusForbidden, "consent token does not match new_owner")
		return
	}

	ctx := identity.ContextWithConsent(r.Context(), consenting)
	if err := a.svc.TransferProduct(ctx, caller, id, newOwner); err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.transfer", map[string]any{
		"product_id": id,
		"new_owner":  newOwner,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "transferred", "owner": newOwner})
}

func (a *API) addActor(w http.ResponseWriter, r *http.Request, id string) {
	caller, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req actorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	actor := strings.TrimSpace(req.Actor)
	if actor == "" {
		writeError(w, r, http.StatusBadRequest, "actor is required")
		return
	}

	if err := a.svc.AddAuthorizedActor(r.Context(), caller, id, actor); err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.actor.add", map[string]any{
		"product_id": id,
		"granted_to": actor,
	})

	writeJSON(w, http.StatusCreated, map[string]any{"status": "authorized", "actor": actor})
}

func (a *API) removeActor(w http.ResponseWriter, r *http.Request, id, actor string) {
	caller, ok := identity.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := a.svc.RemoveAuthorizedActor(r.Context(), caller, id, actor); err != nil {
		handleTrackingError(w, r, err)
		return
	}

	a.audit(r.Context(), "product.actor.remove", map[string]any{
		"product_id":   id,
		"revoked_from": actor,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked", "actor": actor})
}

func (a *API) checkActor(w http.ResponseWriter, r *http.Request, id, actor string) {
	authorized, err := a.svc.IsAuthorized(r.Context(), id, actor)
	if err != nil {
		handleTrackingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authorizedResponse{Actor: actor, Authorized: authorized})
}
