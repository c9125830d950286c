package handler

import (
	"net/http"
	"sync/atomic"

	"rebooked-marketplace/docs/api"

	"github.com/gin-gonic/gin"
)

// specOverride replaces the embedded OpenAPI document when set.
var specOverride atomic.Pointer[[]byte]

// SetSwaggerSpec serves spec instead of the embedded document. Nil or empty
// restores the embedded one.
func SetSwaggerSpec(spec []byte) {
	if len(spec) == 0 {
		specOverride.Store(nil)
		return
	}
	specOverride.Store(&spec)
}

func currentSpec() []byte {
	if p := specOverride.Load(); p != nil {
		return *p
	}
	return api.OpenAPI
}

// SwaggerSpec serves the raw OpenAPI YAML.
func SwaggerSpec(c *gin.Context) {
	spec := currentSpec()
	if len(spec) == 0 {
		c.String(http.StatusNotFound, "OpenAPI spec not available")
		return
	}
	c.Data(http.StatusOK, "application/yaml", spec)
}

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>ReBooked Marketplace API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/swagger/spec', dom_id: '#swagger-ui', deepLinking: true });
  </script>
</body>
</html>`

// SwaggerUI serves the docs page, which loads /swagger/spec.
func SwaggerUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}
