// Package export covers the ways a generated document leaves the builder: a file download, a
// sandboxed preview, free static hosts and a native mobile wrapper.
package export

import (
	"io"
	"net/http"

	"ditto-builder-backend/internal/models"
)

const (
	DownloadFilename = "index.html"

	// PreviewPolicy runs the document in an opaque origin with scripts, modals, forms and popups enabled.
	PreviewPolicy = "sandbox allow-scripts allow-modals allow-forms allow-popups"
)

var staticHosts = []models.StaticHost{
	{Name: "Netlify Drop", URL: "https://app.netlify.com/drop"},
	{Name: "GitHub Pages", URL: "https://pages.github.com/"},
}

var capacitorSteps = []string{
	"npm init @capacitor/app",
	"cp index.html www/index.html",
	"npx cap add android",
}

// Options lists the deployment routes offered for a generated document.
func Options() models.DeployOptionsResponse {
	return models.DeployOptionsResponse{
		DownloadFilename: DownloadFilename,
		StaticHosts:      append([]models.StaticHost(nil), staticHosts...),
		MobileWrapper:    "Capacitor",
		MobileSteps:      append([]string(nil), capacitorSteps...),
	}
}

// WriteDownload sends html as an index.html attachment.
func WriteDownload(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+DownloadFilename+`"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}

// WritePreview serves html for display inside the widget's preview frame.
func WritePreview(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", PreviewPolicy)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, html)
}
