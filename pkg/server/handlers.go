package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goliatone/go-tplguard/pkg/codec"
	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
)

// ComponentResponse describes a registered component.
type ComponentResponse struct {
	Name     string         `json:"name"`
	Location string         `json:"location"`
	Paths    []string       `json:"paths"`
	Schema   map[string]any `json:"schema"`
}

// TemplateResponse describes a compiled template.
type TemplateResponse struct {
	Name         string   `json:"name"`
	Components   []string `json:"components"`
	Variables    []string `json:"variables"`
	Dependencies []string `json:"dependencies"`
	Reads        []string `json:"reads"`
}

// ListResponse wraps name listings.
type ListResponse struct {
	Items []string `json:"items"`
}

// TemplateListResponse wraps template descriptions.
type TemplateListResponse struct {
	Items []TemplateResponse `json:"items"`
}

// readBody returns the request body and its format. It writes the error
// response itself and reports false when the body cannot be used.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, codec.Format, bool) {
	format, err := codec.FormatFromMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		WriteError(w, r, http.StatusUnsupportedMediaType, ErrCodeUnsupportedMediaType,
			err.Error(), false, nil)
		return nil, "", false
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodeInvalidRequest,
				"request body too large", false, map[string]any{"limit": tooLarge.Limit})
			return nil, "", false
		}
		WriteError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			"failed to read request body", true, nil)
		return nil, "", false
	}
	return raw, format, true
}

// handlePutComponent handles PUT /v1/components/{name}
func (s *Server) handlePutComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	raw, format, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if err := s.service.RegisterEncoded(r.Context(), name, format, raw); err != nil {
		s.logger.Info("component rejected", "component", name, "error", err)
		respondJSON(w, http.StatusUnprocessableEntity, tgerrors.NewRegisterResult(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListComponents handles GET /v1/components
func (s *Server) handleListComponents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, ListResponse{Items: nonNil(s.service.Components())})
}

// handleGetComponent handles GET /v1/components/{name}
func (s *Server) handleGetComponent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	component, ok := s.service.Component(name)
	if !ok {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound,
			"component not found", false, map[string]any{"component": name})
		return
	}

	respondJSON(w, http.StatusOK, ComponentResponse{
		Name:     component.Name,
		Location: component.Location,
		Paths:    nonNil(component.Node.Paths()),
		Schema:   component.Payload,
	})
}

// handleCompile handles POST /v1/templates. The body is an array of entities;
// elements that are not objects are skipped like any other malformed entity.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	raw, format, ok := s.readBody(w, r)
	if !ok {
		return
	}

	value, err := codec.Decode(format, raw)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			"request body could not be decoded", false, map[string]any{"error": err.Error()})
		return
	}
	list, ok := value.([]any)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest,
			"request body must be an array of entities", false, nil)
		return
	}

	entities := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if entity, ok := item.(map[string]any); ok {
			entities = append(entities, entity)
		}
	}

	if err := s.service.CompileTemplates(r.Context(), entities); err != nil {
		s.logger.Info("compile batch failed", "entities", len(entities), "error", err)
		respondJSON(w, http.StatusUnprocessableEntity, tgerrors.NewCompileResult(err))
		return
	}
	respondJSON(w, http.StatusOK, tgerrors.NewCompileResult(nil))
}

// handleListTemplates handles GET /v1/templates
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	names := s.service.Templates()
	items := make([]TemplateResponse, 0, len(names))
	for _, name := range names {
		if info, ok := s.service.Template(name); ok {
			items = append(items, templateResponse(info))
		}
	}
	respondJSON(w, http.StatusOK, TemplateListResponse{Items: items})
}

// handleGetTemplate handles GET /v1/templates/{name}
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	info, ok := s.service.Template(name)
	if !ok {
		respondJSON(w, http.StatusNotFound, tgerrors.NewRenderResult("", tgerrors.TemplateNotFound(name)))
		return
	}
	respondJSON(w, http.StatusOK, templateResponse(info))
}

// handleRender handles POST /v1/templates/{name}/render. Output is returned
// as HTML unless the client accepts JSON, in which case it is wrapped in a
// render result. Failures are always render results.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	raw, format, ok := s.readBody(w, r)
	if !ok {
		return
	}

	out, err := s.service.RenderTemplateEncoded(r.Context(), name, format, raw)
	if err != nil {
		s.logger.Debug("render failed", "template", name, "error", err)
		respondJSON(w, statusFor(err), tgerrors.NewRenderResult("", err))
		return
	}

	if acceptsJSON(r) {
		respondJSON(w, http.StatusOK, tgerrors.NewRenderResult(out, nil))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

func acceptsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == "application/json" {
			return true
		}
	}
	return false
}

func templateResponse(info template.Info) TemplateResponse {
	return TemplateResponse{
		Name:         info.Name,
		Components:   nonNil(info.Components),
		Variables:    nonNil(info.Variables),
		Dependencies: nonNil(info.Dependencies),
		Reads:        nonNil(info.Reads),
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
