package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/spec"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"

	"cerebro/internal/auth"
	"cerebro/internal/routetable"
)

const securityName = "ApiKeyAuth"

// DocInfo is the static part of the generated API document.
type DocInfo struct {
	Title       string
	Version     string
	Description string
	// BasePath is the prefix the dispatcher is mounted under.
	BasePath string
}

// buildDocJSON renders a swagger 2.0 document listing every route of t.
func buildDocJSON(info DocInfo, t *routetable.Table) ([]byte, error) {
	paths := make(map[string]spec.PathItem, t.Len())
	tagSet := map[string]struct{}{}
	for _, r := range t.Routes() {
		op := spec.NewOperation(r.Model).
			WithSummary(r.Summary).
			WithDescription(r.Description).
			WithTags(r.DocTags...).
			WithProduces("application/json").
			SecuredWith(securityName)
		for _, p := range r.Params {
			param := spec.QueryParam(p.Name).WithDescription("Filter on " + p.Column + " (" + p.Operator + ")")
			if p.Type == "date" {
				param.Typed("string", "date")
			} else {
				param.Typed("string", "")
			}
			op.AddParam(param)
		}
		op.AddParam(spec.QueryParam("limit").Typed("integer", "").
			WithDefault(defaultLimit).WithMinimum(1, false).WithMaximum(maxLimit, false))
		op.AddParam(spec.QueryParam("offset").Typed("integer", "").
			WithDefault(0).WithMinimum(0, false))
		op.RespondsWith(http.StatusOK, spec.NewResponse().WithDescription("Rows of "+r.Table))
		for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusInternalServerError} {
			op.RespondsWith(code, spec.NewResponse().WithDescription(http.StatusText(code)))
		}
		paths[r.Path] = spec.PathItem{PathItemProps: spec.PathItemProps{Get: op}}
		for _, tag := range r.DocTags {
			tagSet[tag] = struct{}{}
		}
	}

	tags := make([]spec.Tag, 0, len(tagSet))
	for name := range tagSet {
		tags = append(tags, spec.NewTag(name, "", nil))
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })

	doc := spec.Swagger{SwaggerProps: spec.SwaggerProps{
		Swagger: "2.0",
		Info: &spec.Info{InfoProps: spec.InfoProps{
			Title:       info.Title,
			Version:     info.Version,
			Description: info.Description,
		}},
		BasePath: info.BasePath,
		Paths:    &spec.Paths{Paths: paths},
		Tags:     tags,
		SecurityDefinitions: spec.SecurityDefinitions{
			securityName: spec.APIKeyAuth(auth.HeaderAPIKey, "header"),
		},
	}}
	doc.AddExtension("x-route-generation", strconv.FormatUint(t.Generation, 10))
	doc.AddExtension("x-route-generation-id", t.ID)
	return json.Marshal(doc)
}

var (
	registerDocs   sync.Once
	docsDispatcher atomic.Pointer[Dispatcher]
)

// swagDoc feeds http-swagger the live generation's document.
type swagDoc struct{}

func (swagDoc) ReadDoc() string {
	if d := docsDispatcher.Load(); d != nil {
		if b := d.DocJSON(); len(b) > 0 {
			return string(b)
		}
	}
	return "{}"
}

// MountDocs serves the swagger UI at /docs/ and the raw document at
// /openapi.json. Both always reflect the generation being served.
func MountDocs(r chi.Router, d *Dispatcher) {
	docsDispatcher.Store(d)
	registerDocs.Do(func() { swag.Register(swag.Name, swagDoc{}) })

	r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(d.DocJSON())
	})
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/index.html", http.StatusMovedPermanently)
	})
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))
}
