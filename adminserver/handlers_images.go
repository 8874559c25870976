package adminserver

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"smiley-admin/catalog"
	"smiley-admin/editor"
	"smiley-admin/notify"
)

const (
	maxUploadMemory = 32 << 20
	maxUploadBody   = 64 << 20
	previewTimeout  = 10 * time.Second
)

type imagesResponse struct {
	Value         []string             `json:"value"`
	Previews      []editor.Preview     `json:"previews"`
	State         string               `json:"state"`
	Max           int                  `json:"max,omitempty"`
	CanAddMore    bool                 `json:"canAddMore"`
	Disabled      bool                 `json:"disabled"`
	Report        *editor.UploadReport `json:"report,omitempty"`
	Notifications []notify.Message     `json:"notifications,omitempty"`
}

func snapshot(e *editorEntry) imagesResponse {
	ed := e.ed
	return imagesResponse{
		Value:      ed.Value(),
		Previews:   ed.Previews(),
		State:      ed.State().String(),
		Max:        max(ed.Max(), 0),
		CanAddMore: ed.CanAddMore(),
		Disabled:   ed.Disabled(),
	}
}

// editorFor resolves the {id} and {field} path values to an open editor.
func (s *Server) editorFor(r *http.Request) (*editorEntry, error) {
	field, err := catalog.ParseImageField(r.PathValue("field"))
	if err != nil {
		return nil, err
	}
	return s.editors.get(r.Context(), editorKey{spuID: r.PathValue("id"), field: field})
}

// getImages returns the list with previews, resolving any missing ones first.
func (s *Server) getImages(w http.ResponseWriter, r *http.Request) {
	e, err := s.editorFor(r)
	if err != nil {
		respondError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), previewTimeout)
	defer cancel()
	e.ed.SyncPreviews(ctx)
	respondJSON(w, http.StatusOK, snapshot(e))
}

// uploadImages accepts a multipart form with one or more "files" parts and appends
// the stored images to the list in the order they were sent.
func (s *Server) uploadImages(w http.ResponseWriter, r *http.Request) {
	e, err := s.editorFor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, badRequest("invalid multipart form: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, badRequest("no files provided (field name: files)"))
		return
	}
	files := make([]editor.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFormFile(fh)
		if err != nil {
			respondError(w, badRequest(err.Error()))
			return
		}
		files = append(files, f)
	}

	report, err := e.ed.Upload(r.Context(), files)
	if err != nil {
		respondError(w, err, e.notes.Drain()...)
		return
	}
	resp := snapshot(e)
	resp.Report = report
	resp.Notifications = e.notes.Drain()
	respondJSON(w, http.StatusOK, resp)
}

func readFormFile(fh *multipart.FileHeader) (editor.File, error) {
	f, err := fh.Open()
	if err != nil {
		return editor.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return editor.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return editor.File{Name: fh.Filename, ContentType: ct, Data: data}, nil
}

func (s *Server) clearImages(w http.ResponseWriter, r *http.Request) {
	s.mutateImages(w, r, func(ed *editor.Editor) error {
		return ed.ClearAll()
	})
}

func (s *Server) removeImage(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondError(w, badRequest("index must be an integer"))
		return
	}
	s.mutateImages(w, r, func(ed *editor.Editor) error {
		return ed.Remove(index)
	})
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (s *Server) reorderImages(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	s.mutateImages(w, r, func(ed *editor.Editor) error {
		return ed.Reorder(req.From, req.To)
	})
}

type dragRequest struct {
	Action string `json:"action"`
	Index  int    `json:"index"`
}

type dragResponse struct {
	imagesResponse
	Source *int `json:"source"`
	Over   *int `json:"over"`
}

// dragImage drives the drag-to-reorder gesture one event at a time:
// begin, over, leave, drop or cancel.
func (s *Server) dragImage(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	e, err := s.editorFor(r)
	if err != nil {
		respondError(w, err)
		return
	}

	d := e.ed.Drag()
	switch req.Action {
	case "begin":
		d.BeginDrag(req.Index)
	case "over":
		d.DragOver(req.Index)
	case "leave":
		d.DragLeave(req.Index)
	case "drop":
		if err := d.Drop(req.Index); err != nil {
			respondError(w, err)
			return
		}
	case "cancel":
		d.Cancel()
	default:
		respondError(w, badRequest(fmt.Sprintf("unknown drag action %q", req.Action)))
		return
	}

	resp := dragResponse{imagesResponse: snapshot(e)}
	if i, ok := d.Source(); ok {
		resp.Source = &i
	}
	if i, ok := d.OverIndex(); ok {
		resp.Over = &i
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) mutateImages(w http.ResponseWriter, r *http.Request, fn func(ed *editor.Editor) error) {
	e, err := s.editorFor(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := fn(e.ed); err != nil {
		respondError(w, err)
		return
	}
	log.Debug().Str("id", r.PathValue("id")).Str("field", r.PathValue("field")).Int("images", e.ed.Len()).Msg("image list changed")
	respondJSON(w, http.StatusOK, snapshot(e))
}
