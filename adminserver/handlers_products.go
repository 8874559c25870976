package adminserver

import (
	"net/http"

	"smiley-admin/catalog"
)

type productView struct {
	catalog.Product
	PrimaryImageURL string `json:"primaryImageUrl,omitempty"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.store.Products.List(r.Context(), catalog.ProductQuery{
		Page:       pageFrom(r),
		Keyword:    q.Get("keyword"),
		Status:     q.Get("status"),
		CategoryID: q.Get("categoryId"),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	primaries := make([]string, 0, len(list.Items))
	for _, p := range list.Items {
		primaries = append(primaries, p.PrimaryImage)
	}
	urls := s.resolve(r.Context(), primaries)

	views := make([]productView, len(list.Items))
	for i, p := range list.Items {
		views[i] = productView{Product: p, PrimaryImageURL: urls[p.PrimaryImage]}
	}
	respondJSON(w, http.StatusOK, catalog.List[productView]{
		Items:    views,
		Total:    list.Total,
		Page:     list.Page,
		PageSize: list.PageSize,
	})
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.Products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// saveProduct creates the product when the body has no spuId and updates it
// otherwise. Open image editors pick up the saved lists.
func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.Product
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, err)
		return
	}
	saved, err := s.store.Products.Save(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	s.editors.refresh(saved)

	status := http.StatusOK
	if in.SpuID == "" {
		status = http.StatusCreated
	}
	respondJSON(w, status, saved)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Products.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	s.editors.forget(id)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

// importDescriptionImages copies the product images into the description images,
// skipping references already present.
func (s *Server) importDescriptionImages(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	merged, err := s.store.Products.ImportDescriptionImages(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	s.editors.sync(editorKey{id, catalog.FieldDescriptionImages}, merged)
	respondJSON(w, http.StatusOK, map[string]any{"value": merged})
}
