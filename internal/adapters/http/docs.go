package http

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
)

const defaultOpenAPIPath = "api/openapi.yaml"

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#docs',
      docExpansion: 'list',
      tryItOutEnabled: true,
      supportedSubmitMethods: ['get', 'post'],
    });
  </script>
</body>
</html>`

// SetupDocs serves the OpenAPI document at /docs/openapi.yaml and a
// Swagger UI page for it at /docs. The document is read once; when it is
// missing both routes answer 404.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = defaultOpenAPIPath
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("openapi document unavailable, /docs disabled", "path", path, "error", err)
	}
	page := fmt.Sprintf(docsPage, "Marketmap API docs")

	app.Get("/docs", func(c *fiber.Ctx) error {
		if doc == nil {
			return errNotFound(c, "API docs are not available")
		}
		c.Type("html", "utf-8")
		return c.SendString(page)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if doc == nil {
			return errNotFound(c, "openapi.yaml not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		return c.Send(doc)
	})
}
